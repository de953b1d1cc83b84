package share

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/3Eeeecho/go-grocerylist/internal/config"
	"github.com/3Eeeecho/go-grocerylist/internal/models"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/mailer"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/mq"
	"github.com/3Eeeecho/go-grocerylist/internal/repositories"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeIdentity struct {
	mu    sync.Mutex
	calls int
	names []string
	err   error
}

func (f *fakeIdentity) SignInAnonymously(ctx context.Context, displayName string) (*models.User, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, "", f.err
	}
	f.calls++
	f.names = append(f.names, displayName)
	id := fmt.Sprintf("anon-%d", f.calls)
	return &models.User{ID: id, DisplayName: displayName, IsAnonymous: true}, "session-" + id, nil
}

type fakeMailer struct {
	sent []mailer.Invite
	err  error
}

func (m *fakeMailer) SendShareInvite(ctx context.Context, inv mailer.Invite) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, inv)
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []mq.ShareEvent
	err    error
}

func (f *fakeEvents) PublishShareEvent(ctx context.Context, e mq.ShareEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEvents) types() []mq.ShareEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]mq.ShareEventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	db       *gorm.DB
	svc      ShareService
	impl     *shareService
	clock    *fakeClock
	identity *fakeIdentity
	mailer   *fakeMailer
	events   *fakeEvents
	tokens   repositories.ShareTokenRepository
	members  repositories.ShareMemberRepository
	lists    repositories.ListRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "share.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.GroceryList{}, &models.ShareToken{}, &models.ShareMember{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	env := &testEnv{
		db:       db,
		clock:    &fakeClock{now: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)},
		identity: &fakeIdentity{},
		mailer:   &fakeMailer{},
		events:   &fakeEvents{},
		tokens:   repositories.NewShareTokenRepository(db),
		members:  repositories.NewShareMemberRepository(db),
		lists:    repositories.NewListRepository(db, 5),
	}
	env.svc = NewShareService(
		repositories.NewTransactionManager(db),
		env.tokens,
		env.members,
		env.lists,
		config.ShareConfig{BaseURL: "https://grocery.example.com", TokenRetries: 3},
		WithClock(env.clock.Now),
		WithIdentityProvider(env.identity),
		WithMailer(env.mailer),
		WithEventPublisher(env.events),
	)
	env.impl = env.svc.(*shareService)
	return env
}

func (e *testEnv) createList(t *testing.T, owner string) *models.GroceryList {
	t.Helper()
	list := &models.GroceryList{Name: "Weekly groceries", OwnerID: owner, AllowedUsers: []string{owner}}
	require.NoError(t, e.lists.Create(context.Background(), list))
	return list
}

func (e *testEnv) reloadToken(t *testing.T, token string) models.ShareToken {
	t.Helper()
	var st models.ShareToken
	require.NoError(t, e.db.Where("token = ?", token).First(&st).Error)
	return st
}

func (e *testEnv) countMembers(t *testing.T, listID, userID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.ShareMember{}).Where("list_id = ? AND user_id = ?", listID, userID).Count(&n).Error)
	return n
}

// newServiceWith 用替换后的仓储构建服务，其余依赖沿用 env
func (e *testEnv) newServiceWith(tokens repositories.ShareTokenRepository, members repositories.ShareMemberRepository) ShareService {
	return NewShareService(
		repositories.NewTransactionManager(e.db),
		tokens,
		members,
		e.lists,
		config.ShareConfig{BaseURL: "https://grocery.example.com", TokenRetries: 3},
		WithClock(e.clock.Now),
		WithIdentityProvider(e.identity),
		WithEventPublisher(e.events),
	)
}

// changedRowsMembers 模拟 MySQL 只统计实际变更行数的行为
type changedRowsMembers struct {
	repositories.ShareMemberRepository
}

func (r changedRowsMembers) UpdatePermissions(ctx context.Context, listID, userID string, perms models.SharePermissions) (int64, error) {
	if _, err := r.ShareMemberRepository.UpdatePermissions(ctx, listID, userID, perms); err != nil {
		return 0, err
	}
	return 0, nil
}

// exhaustedTokens 校验通过后条件自增失败，相当于被并发请求抢先用尽
type exhaustedTokens struct {
	repositories.ShareTokenRepository
}

func (r exhaustedTokens) WithTx(tx *gorm.DB) repositories.ShareTokenRepository {
	return exhaustedTokens{r.ShareTokenRepository.WithTx(tx)}
}

func (r exhaustedTokens) IncrementUsage(ctx context.Context, id string, now time.Time) (bool, error) {
	return false, nil
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
