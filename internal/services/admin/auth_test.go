package admin

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/3Eeeecho/go-grocerylist/internal/config"
	"github.com/3Eeeecho/go-grocerylist/internal/models"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/utils"
	"github.com/3Eeeecho/go-grocerylist/internal/pkg/xerr"
	"github.com/3Eeeecho/go-grocerylist/internal/repositories"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testJWT = config.JWTConfig{SecretKey: "test-secret", Issuer: "go-grocerylist-test", ExpiresIn: time.Hour}

func newUserRepo(t *testing.T) repositories.UserRepository {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "admin.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repositories.NewUserRepository(db)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t)
	svc := NewAuthService(repo, testJWT)

	user, err := svc.RegisterUser(ctx, "alex", "s3cret-pass", "alex@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.IsAnonymous)

	_, err = svc.RegisterUser(ctx, "alex", "other", "")
	assert.ErrorIs(t, err, xerr.ErrUserAlreadyExists)
	_, err = svc.RegisterUser(ctx, "alex2", "other", "alex@example.com")
	assert.ErrorIs(t, err, xerr.ErrEmailAlreadyExists)

	token, err := svc.LoginUser(ctx, "alex", "s3cret-pass")
	require.NoError(t, err)
	claims, err := utils.ParseToken(token, testJWT.SecretKey, testJWT.Issuer)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.False(t, claims.IsAnonymous)

	// 邮箱也可登录
	_, err = svc.LoginUser(ctx, "alex@example.com", "s3cret-pass")
	require.NoError(t, err)

	_, err = svc.LoginUser(ctx, "alex", "wrong")
	assert.ErrorIs(t, err, xerr.ErrInvalidCredentials)
	_, err = svc.LoginUser(ctx, "nobody", "s3cret-pass")
	assert.ErrorIs(t, err, xerr.ErrInvalidCredentials)
}

func TestSignInAnonymously(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(newUserRepo(t), testJWT)

	first, token, err := svc.SignInAnonymously(ctx, "  Sam  ")
	require.NoError(t, err)
	assert.True(t, first.IsAnonymous)
	assert.Equal(t, "Sam", first.DisplayName)

	claims, err := utils.ParseToken(token, testJWT.SecretKey, testJWT.Issuer)
	require.NoError(t, err)
	assert.Equal(t, first.ID, claims.UserID)
	assert.True(t, claims.IsAnonymous)

	// 多个匿名用户的用户名/邮箱均为 NULL，不应触发唯一索引冲突
	second, _, err := svc.SignInAnonymously(ctx, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestLinkCredentials(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t)
	svc := NewAuthService(repo, testJWT)

	anon, _, err := svc.SignInAnonymously(ctx, "Sam")
	require.NoError(t, err)

	linked, token, err := svc.LinkCredentials(ctx, anon.ID, "sam", "pass-1234", "")
	require.NoError(t, err)
	assert.Equal(t, anon.ID, linked.ID)
	assert.False(t, linked.IsAnonymous)
	assert.Equal(t, "Sam", linked.DisplayName)

	claims, err := utils.ParseToken(token, testJWT.SecretKey, testJWT.Issuer)
	require.NoError(t, err)
	assert.False(t, claims.IsAnonymous)
	assert.Equal(t, "sam", claims.Username)

	_, err = svc.LoginUser(ctx, "sam", "pass-1234")
	require.NoError(t, err)

	_, _, err = svc.LinkCredentials(ctx, anon.ID, "sam2", "pass", "")
	assert.ErrorIs(t, err, xerr.ErrAlreadyLinked)

	_, _, err = svc.LinkCredentials(ctx, "missing", "x", "y", "")
	assert.ErrorIs(t, err, xerr.ErrUserNotFound)

	other, _, err := svc.SignInAnonymously(ctx, "Kim")
	require.NoError(t, err)
	_, _, err = svc.LinkCredentials(ctx, other.ID, "sam", "pass", "")
	assert.ErrorIs(t, err, xerr.ErrUserAlreadyExists)
}

func TestGetUserProfile(t *testing.T) {
	ctx := context.Background()
	repo := newUserRepo(t)
	auth := NewAuthService(repo, testJWT)
	users := NewUserService(repo)

	created, err := auth.RegisterUser(ctx, "alex", "pw", "")
	require.NoError(t, err)

	got, err := users.GetUserProfile(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alex", *got.Username)

	_, err = users.GetUserProfile(ctx, "missing")
	assert.ErrorIs(t, err, xerr.ErrUserNotFound)
}
