package repositories

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/3Eeeecho/go-grocerylist/internal/models"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/cache"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/logger"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// cachedShareMemberRepository 在数据库仓库之上缓存清单成员列表
// 写操作只删除缓存，不回写
type cachedShareMemberRepository struct {
	next  ShareMemberRepository
	cache cache.Cache
	ttl   time.Duration
}

var (
	_ ShareMemberRepository  = (*cachedShareMemberRepository)(nil)
	_ MemberCacheInvalidator = (*cachedShareMemberRepository)(nil)
)

func NewCachedShareMemberRepository(next ShareMemberRepository, c cache.Cache, ttl time.Duration) ShareMemberRepository {
	return &cachedShareMemberRepository{next: next, cache: c, ttl: ttl}
}

func (r *cachedShareMemberRepository) WithTx(tx *gorm.DB) ShareMemberRepository {
	return &cachedShareMemberRepository{next: r.next.WithTx(tx), cache: r.cache, ttl: r.ttl}
}

func (r *cachedShareMemberRepository) Create(ctx context.Context, member *models.ShareMember) (bool, error) {
	created, err := r.next.Create(ctx, member)
	if err != nil {
		return false, err
	}
	if created {
		r.InvalidateListMembers(ctx, member.ListID)
	}
	return created, nil
}

func (r *cachedShareMemberRepository) FindByListAndUser(ctx context.Context, listID, userID string) (*models.ShareMember, error) {
	return r.next.FindByListAndUser(ctx, listID, userID)
}

func (r *cachedShareMemberRepository) FindByListID(ctx context.Context, listID string) ([]models.ShareMember, error) {
	key := cache.GenerateListMembersKey(listID)

	var members []models.ShareMember
	err := r.cache.Get(ctx, key, &members)
	if err == nil {
		return members, nil
	}
	if !errors.Is(err, xerr.ErrCacheMiss) {
		logger.Error("FindByListID: 读取成员缓存失败", zap.String("key", key), zap.Error(err))
	}

	members, err = r.next.FindByListID(ctx, listID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []models.ShareMember{}
	}

	// 随机抖动，避免同时失效
	ttl := r.ttl + time.Duration(rand.Intn(30))*time.Second
	if setErr := r.cache.Set(ctx, key, members, ttl); setErr != nil {
		logger.Warn("FindByListID: 写入成员缓存失败", zap.String("key", key), zap.Error(setErr))
	}
	return members, nil
}

func (r *cachedShareMemberRepository) UpdatePermissions(ctx context.Context, listID, userID string, perms models.SharePermissions) (int64, error) {
	n, err := r.next.UpdatePermissions(ctx, listID, userID, perms)
	if err != nil {
		return 0, err
	}
	r.InvalidateListMembers(ctx, listID)
	return n, nil
}

func (r *cachedShareMemberRepository) DeleteByListAndUser(ctx context.Context, listID, userID string) (int64, error) {
	n, err := r.next.DeleteByListAndUser(ctx, listID, userID)
	if err != nil {
		return 0, err
	}
	r.InvalidateListMembers(ctx, listID)
	return n, nil
}

func (r *cachedShareMemberRepository) InvalidateListMembers(ctx context.Context, listID string) {
	key := cache.GenerateListMembersKey(listID)
	if err := r.cache.Del(ctx, key); err != nil {
		logger.Warn("InvalidateListMembers: 删除成员缓存失败", zap.String("key", key), zap.Error(err))
	}
}
