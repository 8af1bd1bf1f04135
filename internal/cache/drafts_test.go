package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/ridemap/internal/lib/draft"
	"github.com/dpup/ridemap/internal/lib/geo"
	"github.com/dpup/ridemap/internal/lib/hull"
)

func sampleSnapshot() draft.Snapshot {
	return draft.Snapshot{
		ID: uuid.NewString(),
		Points: []geo.Point{
			{Latitude: 14.10, Longitude: 121.00},
			{Latitude: 14.10, Longitude: 121.01},
			{Latitude: 14.11, Longitude: 121.01},
		},
		Selected: 1,
		Mode:     hull.ModeInsertion,
	}
}

func exerciseStore(t *testing.T, store DraftStore) {
	t.Helper()
	ctx := testContext()
	snap := sampleSnapshot()

	_, err := store.LoadDraft(ctx, snap.ID)
	assert.ErrorIs(t, err, ErrDraftNotFound)

	require.NoError(t, store.SaveDraft(ctx, snap))
	got, err := store.LoadDraft(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	require.NoError(t, store.DeleteDraft(ctx, snap.ID))
	_, err = store.LoadDraft(ctx, snap.ID)
	assert.ErrorIs(t, err, ErrDraftNotFound)

	assert.Error(t, store.SaveDraft(ctx, draft.Snapshot{}))
}

func TestMemoryDraftStore(t *testing.T) {
	exerciseStore(t, NewMemoryDraftStore(NewCache(), time.Hour))
}

func TestMemoryDraftStore_Expiry(t *testing.T) {
	ctx := testContext()
	clock := newClock()
	store := NewMemoryDraftStore(NewCacheWithClock(clock.Now), time.Minute)

	snap := sampleSnapshot()
	require.NoError(t, store.SaveDraft(ctx, snap))
	clock.Advance(2 * time.Minute)

	_, err := store.LoadDraft(ctx, snap.ID)
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisDraftStore, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(testContext()).Err())
	return NewRedisDraftStore(client, ttl), server
}

func TestRedisDraftStore(t *testing.T) {
	store, server := newRedisStore(t, time.Minute)
	exerciseStore(t, store)

	snap := sampleSnapshot()
	require.NoError(t, store.SaveDraft(testContext(), snap))
	assert.True(t, server.Exists("draft:"+snap.ID))
	assert.Equal(t, time.Minute, server.TTL("draft:"+snap.ID))
}

func TestRedisDraftStore_Expiry(t *testing.T) {
	ctx := testContext()
	store, server := newRedisStore(t, time.Minute)

	snap := sampleSnapshot()
	require.NoError(t, store.SaveDraft(ctx, snap))
	server.FastForward(2 * time.Minute)

	_, err := store.LoadDraft(ctx, snap.ID)
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestRedisDraftStore_ServerDown(t *testing.T) {
	ctx := testContext()
	store, server := newRedisStore(t, time.Minute)
	server.Close()

	err := store.SaveDraft(ctx, sampleSnapshot())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDraftNotFound)

	_, err = store.LoadDraft(ctx, "missing")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDraftNotFound)
}
