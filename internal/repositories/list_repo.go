package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-grocerylist/internal/models"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ListRepository interface {
	WithTx(tx *gorm.DB) ListRepository

	Create(ctx context.Context, list *models.GroceryList) error
	FindByID(ctx context.Context, id string) (*models.GroceryList, error)
	// FindAccessibleByUser 返回用户拥有的、作为成员加入的以及旧版 allowed_users 中包含该用户的清单
	FindAccessibleByUser(ctx context.Context, userID string) ([]models.GroceryList, error)

	// AddAllowedUser 将 userID 加入 allowed_users (集合语义)，清单不存在时返回 false
	AddAllowedUser(ctx context.Context, listID, userID string, now time.Time) (bool, error)
	// RemoveAllowedUser 从 allowed_users 中移除 userID，清单不存在时返回 false
	RemoveAllowedUser(ctx context.Context, listID, userID string, now time.Time) (bool, error)
}

type listRepository struct {
	db         *gorm.DB
	maxRetries int
	inTx       bool
}

var _ ListRepository = (*listRepository)(nil)

// NewListRepository maxRetries 为 allowed_users 乐观锁冲突时的最大重试次数
func NewListRepository(db *gorm.DB, maxRetries int) ListRepository {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &listRepository{db: db, maxRetries: maxRetries}
}

func (r *listRepository) WithTx(tx *gorm.DB) ListRepository {
	return &listRepository{db: tx, maxRetries: r.maxRetries, inTx: true}
}

func (r *listRepository) Create(ctx context.Context, list *models.GroceryList) error {
	if err := r.db.WithContext(ctx).Create(list).Error; err != nil {
		return fmt.Errorf("创建清单失败: %w", err)
	}
	return nil
}

func (r *listRepository) FindByID(ctx context.Context, id string) (*models.GroceryList, error) {
	var list models.GroceryList
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&list).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询清单失败: %w", err)
	}
	return &list, nil
}

func (r *listRepository) FindAccessibleByUser(ctx context.Context, userID string) ([]models.GroceryList, error) {
	var lists []models.GroceryList
	members := r.db.Model(&models.ShareMember{}).Select("list_id").Where("user_id = ?", userID)
	err := r.db.WithContext(ctx).
		Where("owner_id = ? OR id IN (?) OR ?", userID, members, datatypes.JSONArrayQuery("allowed_users").Contains(userID)).
		Order("updated_at desc").
		Find(&lists).Error
	if err != nil {
		return nil, fmt.Errorf("查询用户清单失败: %w", err)
	}
	return lists, nil
}

func (r *listRepository) AddAllowedUser(ctx context.Context, listID, userID string, now time.Time) (bool, error) {
	return r.mutateAllowedUsers(ctx, listID, now, func(users []string) ([]string, bool) {
		for _, id := range users {
			if id == userID {
				return users, false
			}
		}
		return append(users, userID), true
	})
}

func (r *listRepository) RemoveAllowedUser(ctx context.Context, listID, userID string, now time.Time) (bool, error) {
	return r.mutateAllowedUsers(ctx, listID, now, func(users []string) ([]string, bool) {
		out := make([]string, 0, len(users))
		for _, id := range users {
			if id != userID {
				out = append(out, id)
			}
		}
		return out, len(out) != len(users)
	})
}

// mutateAllowedUsers 读取-修改-条件写入，version 不匹配说明期间有其他写入，重新读取后重试
// 在事务内读取时加行锁，避免同一事务反复冲突
func (r *listRepository) mutateAllowedUsers(ctx context.Context, listID string, now time.Time, mutate func([]string) ([]string, bool)) (bool, error) {
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		query := r.db.WithContext(ctx)
		if r.inTx {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var list models.GroceryList
		err := query.Select("id", "allowed_users", "version").Where("id = ?", listID).First(&list).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("读取清单访问名单失败: %w", err)
		}

		users := make([]string, len(list.AllowedUsers))
		copy(users, list.AllowedUsers)
		next, changed := mutate(users)
		if !changed {
			return true, nil
		}

		result := r.db.WithContext(ctx).Model(&models.GroceryList{}).
			Where("id = ? AND version = ?", listID, list.Version).
			Updates(map[string]any{
				"allowed_users": datatypes.NewJSONSlice(next),
				"version":       gorm.Expr("version + ?", 1),
				"updated_at":    now,
			})
		if result.Error != nil {
			return false, fmt.Errorf("更新清单访问名单失败: %w", result.Error)
		}
		if result.RowsAffected == 1 {
			return true, nil
		}
	}
	return false, fmt.Errorf("更新清单 %s 访问名单: %w", listID, xerr.ErrConcurrentUpdate)
}
