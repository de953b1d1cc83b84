package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCleaner struct {
	calls atomic.Int32
	n     int
	err   error
}

func (f *fakeCleaner) CleanupExpiredTokens(ctx context.Context) (int, error) {
	f.calls.Add(1)
	return f.n, f.err
}

type panicTask struct{}

func (panicTask) Name() string                  { return "panic" }
func (panicTask) Run(ctx context.Context) error { panic("boom") }

func TestTokenCleanupTask(t *testing.T) {
	cleaner := &fakeCleaner{n: 3}
	task := NewTokenCleanupTask(cleaner)

	require.NoError(t, RunOnce(context.Background(), task))
	assert.Equal(t, int32(1), cleaner.calls.Load())

	cleaner.err = errors.New("db down")
	assert.ErrorIs(t, RunOnce(context.Background(), task), cleaner.err)
}

func TestRunOnce_RecoversPanic(t *testing.T) {
	err := RunOnce(context.Background(), panicTask{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := NewScheduler(time.Second)
	assert.Error(t, s.AddTask("not a cron spec", NewTokenCleanupTask(&fakeCleaner{})))
}

func TestScheduler_RunsTask(t *testing.T) {
	cleaner := &fakeCleaner{}
	s := NewScheduler(time.Second)
	require.NoError(t, s.AddTask("@every 1s", NewTokenCleanupTask(cleaner)))

	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	assert.Eventually(t, func() bool { return cleaner.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}
