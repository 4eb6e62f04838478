package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*LeaderboardCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewLeaderboardCache(client, ttl), mr
}

func TestNilCacheIsAlwaysMiss(t *testing.T) {
	c := NewLeaderboardCache(nil, time.Minute)
	assert.Nil(t, c)

	var dest []int
	found, err := c.Get(context.Background(), "leaderboard:xp:10:0", &dest)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.Set(context.Background(), "k", []int{1}))
	assert.NoError(t, c.Invalidate(context.Background()))
}

func TestLeaderboardKey(t *testing.T) {
	assert.Equal(t, "leaderboard:xp:50:100", LeaderboardKey("xp", 50, 100))
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url")
	assert.Error(t, err)
}

type page struct {
	Category string `json:"category"`
	UserIDs  []uint `json:"user_ids"`
}

func TestGetSetRoundTripWithTTL(t *testing.T) {
	c, mr := newTestCache(t, 30*time.Second)
	ctx := context.Background()
	key := LeaderboardKey("xp", 10, 0)

	var got page
	found, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, key, page{Category: "xp", UserIDs: []uint{3, 1}}))
	assert.Equal(t, 30*time.Second, mr.TTL(key))

	found, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []uint{3, 1}, got.UserIDs)

	mr.FastForward(31 * time.Second)
	found, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found, "entries expire after the ttl")
}

func TestGetReportsCorruptEntries(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	key := LeaderboardKey("streak", 10, 0)
	require.NoError(t, mr.Set(key, "{not json"))

	var got page
	found, err := c.Get(context.Background(), key, &got)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestInvalidateDropsOnlyLeaderboardKeys(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	for i := 0; i < 250; i++ {
		require.NoError(t, c.Set(ctx, LeaderboardKey("xp", 10, i*10), page{Category: "xp"}))
	}
	require.NoError(t, mr.Set("session:abc", "keep"))

	require.NoError(t, c.Invalidate(ctx))
	assert.Equal(t, []string{"session:abc"}, mr.Keys())

	require.NoError(t, c.Invalidate(ctx), "invalidating an empty cache is a no-op")
}

func TestNewRedisClientFailsWhenServerIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisClient(ctx, "redis://"+addr)
	assert.Error(t, err)
}
