package task

import (
	"context"

	"github.com/3Eeeecho/go-grocerylist/internal/pkg/logger"
	"go.uber.org/zap"
)

// TokenCleaner 由 share.ShareService 实现
type TokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context) (int, error)
}

// TokenCleanupTask 定期停用已过期的分享 token
type TokenCleanupTask struct {
	cleaner TokenCleaner
}

func NewTokenCleanupTask(cleaner TokenCleaner) *TokenCleanupTask {
	return &TokenCleanupTask{cleaner: cleaner}
}

func (t *TokenCleanupTask) Name() string {
	return "ShareTokenCleanup"
}

func (t *TokenCleanupTask) Run(ctx context.Context) error {
	n, err := t.cleaner.CleanupExpiredTokens(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("task log", zap.String("task", t.Name()), zap.Int("deactivated", n))
	}
	return nil
}
