package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/3Eeeecho/go-grocerylist/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newShareToken(token, listID string, expiresAt *time.Time, maxUses *int) *models.ShareToken {
	return &models.ShareToken{
		Token:     token,
		ListID:    listID,
		CreatedBy: "owner",
		Settings: models.ShareSettings{
			Permissions: models.SharePermissions{CanView: true, CanAddItems: true},
			ExpiresIn:   models.ExpiresInDay,
			ShareMode:   models.ShareModeAll,
			MaxUses:     maxUses,
		},
		CreatedAt: time.Date(2026, 10, 16, 11, 0, 0, 0, time.UTC),
		ExpiresAt: expiresAt,
		IsActive:  true,
	}
}

func TestShareTokenRepository_CreateAndFind(t *testing.T) {
	db := newTestDB(t)
	repo := NewShareTokenRepository(db)
	ctx := context.Background()

	st := newShareToken("tok-a", "list-1", nil, nil)
	require.NoError(t, repo.Create(ctx, st))
	assert.NotEmpty(t, st.ID)

	exists, err := repo.ExistsByToken(ctx, "tok-a")
	require.NoError(t, err)
	assert.True(t, exists)

	found, err := repo.FindActiveByToken(ctx, "tok-a")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "list-1", found.ListID)
	assert.True(t, found.Settings.Permissions.CanAddItems)
	assert.Nil(t, found.ExpiresAt)
	assert.Nil(t, found.Settings.MaxUses)

	missing, err := repo.FindActiveByToken(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestShareTokenRepository_DuplicateTokenRejected(t *testing.T) {
	db := newTestDB(t)
	repo := NewShareTokenRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newShareToken("dup", "list-1", nil, nil)))
	assert.Error(t, repo.Create(ctx, newShareToken("dup", "list-2", nil, nil)))
}

func TestShareTokenRepository_IncrementUsageRespectsCap(t *testing.T) {
	db := newTestDB(t)
	repo := NewShareTokenRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	two := 2
	st := newShareToken("capped", "list-1", nil, &two)
	require.NoError(t, repo.Create(ctx, st))

	for i := 0; i < 2; i++ {
		ok, err := repo.IncrementUsage(ctx, st.ID, now)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := repo.IncrementUsage(ctx, st.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindByID(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsageCount)
}

func TestShareTokenRepository_IncrementUsageRejectsExpiredAndInactive(t *testing.T) {
	db := newTestDB(t)
	repo := NewShareTokenRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Second)
	expired := newShareToken("expired", "list-1", &past, nil)
	require.NoError(t, repo.Create(ctx, expired))
	ok, err := repo.IncrementUsage(ctx, expired.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	revoked := newShareToken("revoked", "list-1", nil, nil)
	require.NoError(t, repo.Create(ctx, revoked))
	n, err := repo.DeactivateByToken(ctx, "revoked")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	ok, err = repo.IncrementUsage(ctx, revoked.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShareTokenRepository_ExpiredAndListQueries(t *testing.T) {
	db := newTestDB(t)
	repo := NewShareTokenRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	require.NoError(t, repo.Create(ctx, newShareToken("old", "list-1", &past, nil)))
	require.NoError(t, repo.Create(ctx, newShareToken("atnow", "list-1", &now, nil)))
	require.NoError(t, repo.Create(ctx, newShareToken("fresh", "list-1", &future, nil)))
	require.NoError(t, repo.Create(ctx, newShareToken("forever", "list-2", nil, nil)))

	expired, err := repo.FindExpiredActive(ctx, now)
	require.NoError(t, err)
	var ids []string
	var tokens []string
	for _, st := range expired {
		ids = append(ids, st.ID)
		tokens = append(tokens, st.Token)
	}
	assert.ElementsMatch(t, []string{"old", "atnow"}, tokens)

	n, err := repo.DeactivateByIDs(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	active, err := repo.FindActiveByListID(ctx, "list-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "fresh", active[0].Token)

	n, err = repo.DeactivateByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
