package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-grocerylist/internal/models"
	"gorm.io/gorm"
)

type ShareTokenRepository interface {
	// WithTx 返回绑定到事务 tx 的仓库实例
	WithTx(tx *gorm.DB) ShareTokenRepository

	Create(ctx context.Context, token *models.ShareToken) error
	ExistsByToken(ctx context.Context, token string) (bool, error)
	FindActiveByToken(ctx context.Context, token string) (*models.ShareToken, error)
	FindByID(ctx context.Context, id string) (*models.ShareToken, error)
	FindActiveByListID(ctx context.Context, listID string) ([]models.ShareToken, error)
	FindExpiredActive(ctx context.Context, now time.Time) ([]models.ShareToken, error)

	// IncrementUsage 条件自增 usage_count，token 已失效、过期或达到上限时返回 false
	IncrementUsage(ctx context.Context, id string, now time.Time) (bool, error)
	DeactivateByToken(ctx context.Context, token string) (int64, error)
	DeactivateByIDs(ctx context.Context, ids []string) (int64, error)
}

type shareTokenRepository struct {
	db *gorm.DB
}

var _ ShareTokenRepository = (*shareTokenRepository)(nil)

// NewShareTokenRepository 创建新的 shareTokenRepository 实例
func NewShareTokenRepository(db *gorm.DB) ShareTokenRepository {
	return &shareTokenRepository{db: db}
}

func (r *shareTokenRepository) WithTx(tx *gorm.DB) ShareTokenRepository {
	return &shareTokenRepository{db: tx}
}

func (r *shareTokenRepository) Create(ctx context.Context, token *models.ShareToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("创建分享 token 记录失败: %w", err)
	}
	return nil
}

func (r *shareTokenRepository) ExistsByToken(ctx context.Context, token string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ShareToken{}).Where("token = ?", token).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("查询分享 token 是否存在失败: %w", err)
	}
	return count > 0, nil
}

// FindActiveByToken 查找 token 对应的有效记录，不存在时返回 nil, nil
func (r *shareTokenRepository) FindActiveByToken(ctx context.Context, token string) (*models.ShareToken, error) {
	var st models.ShareToken
	err := r.db.WithContext(ctx).Where("token = ? AND is_active = ?", token, true).First(&st).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询分享 token 失败: %w", err)
	}
	return &st, nil
}

func (r *shareTokenRepository) FindByID(ctx context.Context, id string) (*models.ShareToken, error) {
	var st models.ShareToken
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&st).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询分享 token 失败: %w", err)
	}
	return &st, nil
}

func (r *shareTokenRepository) FindActiveByListID(ctx context.Context, listID string) ([]models.ShareToken, error) {
	var tokens []models.ShareToken
	err := r.db.WithContext(ctx).
		Where("list_id = ? AND is_active = ?", listID, true).
		Order("created_at desc").
		Find(&tokens).Error
	if err != nil {
		return nil, fmt.Errorf("查询清单分享 token 失败: %w", err)
	}
	return tokens, nil
}

// FindExpiredActive 查找 expires_at 不晚于 now 但仍处于有效状态的记录
func (r *shareTokenRepository) FindExpiredActive(ctx context.Context, now time.Time) ([]models.ShareToken, error) {
	var tokens []models.ShareToken
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
		Find(&tokens).Error
	if err != nil {
		return nil, fmt.Errorf("查询过期分享 token 失败: %w", err)
	}
	return tokens, nil
}

func (r *shareTokenRepository) IncrementUsage(ctx context.Context, id string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.ShareToken{}).
		Where("id = ? AND is_active = ?", id, true).
		Where("max_uses IS NULL OR usage_count < max_uses").
		Where("expires_at IS NULL OR expires_at > ?", now).
		UpdateColumn("usage_count", gorm.Expr("usage_count + ?", 1))
	if result.Error != nil {
		return false, fmt.Errorf("更新分享 token 使用次数失败: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// DeactivateByToken 将同一 token 值的所有记录置为失效
func (r *shareTokenRepository) DeactivateByToken(ctx context.Context, token string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.ShareToken{}).
		Where("token = ? AND is_active = ?", token, true).
		UpdateColumn("is_active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("停用分享 token 失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *shareTokenRepository) DeactivateByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&models.ShareToken{}).
		Where("id IN ? AND is_active = ?", ids, true).
		UpdateColumn("is_active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("批量停用分享 token 失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}
