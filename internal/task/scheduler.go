package task

import (
	"context"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-grocerylist/internal/pkg/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task 定义任务接口
type Task interface {
	Name() string                  // 任务名称
	Run(ctx context.Context) error // 执行任务
}

// Scheduler 基于 cron 表达式的任务调度器
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

// NewScheduler timeout 为单次执行的超时时间，<= 0 表示不限制
func NewScheduler(timeout time.Duration) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		// 上一次还没执行完时跳过本次
		cron:    cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: timeout,
	}
}

// AddTask 按 spec 注册任务，spec 支持标准 5 段表达式和 @every 1h 这类描述符
func (s *Scheduler) AddTask(spec string, t Task) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		_ = RunOnce(ctx, t)
	})
	if err != nil {
		logger.Error("Failed to parse cron expression", zap.String("task", t.Name()), zap.String("expr", spec), zap.Error(err))
		return fmt.Errorf("invalid cron spec %q for task %s: %w", spec, t.Name(), err)
	}
	logger.Info("task registered", zap.String("name", t.Name()), zap.String("spec", spec))
	return nil
}

func (s *Scheduler) Start() {
	logger.Info("tasks starting", zap.Int("count", len(s.cron.Entries())))
	s.cron.Start()
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		logger.Info("tasks stopped")
	case <-ctx.Done():
		logger.Warn("tasks stop timeout", zap.Error(ctx.Err()))
	}
}

// RunOnce 执行一次任务，panic 会被恢复并作为 error 返回
func RunOnce(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panic",
				zap.String("name", t.Name()),
				zap.Any("panic", r),
				zap.Stack("stack"))
			err = fmt.Errorf("task %s panic: %v", t.Name(), r)
		}
	}()

	start := time.Now()
	if err = t.Run(ctx); err != nil {
		logger.Error("task running error", zap.String("name", t.Name()), zap.Error(err))
		return err
	}
	logger.Debug("task finished", zap.String("name", t.Name()), zap.Duration("elapsed", time.Since(start)))
	return nil
}
