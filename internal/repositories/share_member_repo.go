package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/3Eeeecho/go-grocerylist/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ShareMemberRepository interface {
	WithTx(tx *gorm.DB) ShareMemberRepository

	// Create 插入成员记录，(list_id, user_id) 已存在时不插入并返回 false
	Create(ctx context.Context, member *models.ShareMember) (bool, error)
	FindByListAndUser(ctx context.Context, listID, userID string) (*models.ShareMember, error)
	FindByListID(ctx context.Context, listID string) ([]models.ShareMember, error)
	UpdatePermissions(ctx context.Context, listID, userID string, perms models.SharePermissions) (int64, error)
	DeleteByListAndUser(ctx context.Context, listID, userID string) (int64, error)
}

// MemberCacheInvalidator 由带缓存的实现提供，事务提交后调用
type MemberCacheInvalidator interface {
	InvalidateListMembers(ctx context.Context, listID string)
}

type shareMemberRepository struct {
	db *gorm.DB
}

var _ ShareMemberRepository = (*shareMemberRepository)(nil)

func NewShareMemberRepository(db *gorm.DB) ShareMemberRepository {
	return &shareMemberRepository{db: db}
}

func (r *shareMemberRepository) WithTx(tx *gorm.DB) ShareMemberRepository {
	return &shareMemberRepository{db: tx}
}

func (r *shareMemberRepository) Create(ctx context.Context, member *models.ShareMember) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "list_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(member)
	if result.Error != nil {
		return false, fmt.Errorf("创建成员记录失败: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *shareMemberRepository) FindByListAndUser(ctx context.Context, listID, userID string) (*models.ShareMember, error) {
	var m models.ShareMember
	err := r.db.WithContext(ctx).Where("list_id = ? AND user_id = ?", listID, userID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询成员记录失败: %w", err)
	}
	return &m, nil
}

func (r *shareMemberRepository) FindByListID(ctx context.Context, listID string) ([]models.ShareMember, error) {
	var members []models.ShareMember
	err := r.db.WithContext(ctx).Where("list_id = ?", listID).Order("joined_at asc").Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("查询清单成员失败: %w", err)
	}
	return members, nil
}

// UpdatePermissions 覆盖成员权限，用 map 保证 false 值也会写入
func (r *shareMemberRepository) UpdatePermissions(ctx context.Context, listID, userID string, perms models.SharePermissions) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.ShareMember{}).
		Where("list_id = ? AND user_id = ?", listID, userID).
		Updates(map[string]any{
			"perm_can_view":         perms.CanView,
			"perm_can_add_items":    perms.CanAddItems,
			"perm_can_edit_items":   perms.CanEditItems,
			"perm_can_delete_items": perms.CanDeleteItems,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("更新成员权限失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *shareMemberRepository) DeleteByListAndUser(ctx context.Context, listID, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("list_id = ? AND user_id = ?", listID, userID).
		Delete(&models.ShareMember{})
	if result.Error != nil {
		return 0, fmt.Errorf("删除成员记录失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}
