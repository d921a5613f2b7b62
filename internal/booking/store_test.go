package booking

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionStore(client, ttl), mr
}

func TestRedisSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t, time.Hour)

	got, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got, "unknown user has no session")

	session := NewSession(42)
	session.State = StateAwaitingTime
	session.ServiceID = "cleansing"
	session.OfferedSlots = []string{"14:00", "14:30"}
	require.NoError(t, store.Save(ctx, session))

	got, err = store.Get(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StateAwaitingTime, got.State)
	assert.Equal(t, []string{"14:00", "14:30"}, got.OfferedSlots)

	require.NoError(t, store.Clear(ctx, 42))
	got, err = store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSessionStoreTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Minute)

	require.NoError(t, store.Save(ctx, NewSession(7)))

	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, got, "abandoned session expires")
}

func TestRedisSessionStoreIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t, time.Hour)

	first := NewSession(1)
	first.ServiceID = "cleansing"
	second := NewSession(2)
	second.ServiceID = "peeling"
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "cleansing", got.ServiceID)
	got, err = store.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "peeling", got.ServiceID)
}

func TestMemorySessionStoreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()

	session := NewSession(1)
	session.OfferedSlots = []string{"14:00"}
	require.NoError(t, store.Save(ctx, session))

	// Mutating the caller's copy must not leak into the store.
	session.OfferedSlots[0] = "18:00"
	session.ServiceID = "changed"

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"14:00"}, got.OfferedSlots)
	assert.Empty(t, got.ServiceID)
}
