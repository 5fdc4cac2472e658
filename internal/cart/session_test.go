package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/angelmondragon/foodorder-backend/pkg/redis"
)

func newSessionRepo(t *testing.T, ttl time.Duration) (*SessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisclient.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	return NewSessionRepository(client, ttl), mr
}

func TestSessionRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, mr := newSessionRepo(t, time.Hour)
	userID := uuid.New()

	items := []Item{{ID: uuid.NewString(), Name: "Mandi", Price: decimal.RequireFromString("45.00"), Quantity: 2}}
	require.NoError(t, repo.Save(ctx, userID, items))

	key := "fo:cart:" + userID.String()
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))

	loaded, err := repo.Load(ctx, userID)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 2, loaded[0].Quantity)
	assert.True(t, loaded[0].Price.Equal(decimal.NewFromInt(45)))
}

func TestSessionRepositoryExpires(t *testing.T) {
	ctx := context.Background()
	repo, mr := newSessionRepo(t, time.Minute)
	userID := uuid.New()

	require.NoError(t, repo.Save(ctx, userID, []Item{{ID: "x", Quantity: 1}}))
	mr.FastForward(2 * time.Minute)

	loaded, err := repo.Load(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSessionRepositorySaveEmptyDeletes(t *testing.T) {
	ctx := context.Background()
	repo, mr := newSessionRepo(t, time.Hour)
	userID := uuid.New()

	require.NoError(t, repo.Save(ctx, userID, []Item{{ID: "x", Quantity: 1}}))
	require.NoError(t, repo.Save(ctx, userID, nil))
	assert.False(t, mr.Exists("fo:cart:"+userID.String()))
}

func TestSessionRepositoryLoadErrors(t *testing.T) {
	ctx := context.Background()
	repo, mr := newSessionRepo(t, time.Hour)
	userID := uuid.New()

	require.NoError(t, mr.Set("fo:cart:"+userID.String(), "[1,2"))
	_, err := repo.Load(ctx, userID)
	assert.ErrorIs(t, err, ErrCorruptSnapshot)

	mr.Close()
	_, err = repo.Load(ctx, userID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCorruptSnapshot)
}
