package cache

import (
	"context"
	"testing"
	"time"

	"canteen/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*LeaderboardCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLeaderboardCache(client, time.Minute), mr
}

func TestLeaderboardCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	gen, err := c.Generation(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, gen)

	_, ok, err := c.Get(ctx, 1, gen, model.WindowAllTime)
	require.NoError(t, err)
	assert.False(t, ok)

	entries := []model.LeaderboardEntry{
		{UserID: 7, UserFullName: "Anna", ProductName: "Beer", Amount: 12, Position: 1},
		{UserID: 9, UserFullName: "Bram", ProductName: "Beer", Amount: 0, Position: 0},
	}
	require.NoError(t, c.Set(ctx, 1, gen, model.WindowAllTime, entries, time.Time{}))

	got, ok, err := c.Get(ctx, 1, gen, model.WindowAllTime)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entries, got)

	// 其他窗口不受影响
	_, ok, err = c.Get(ctx, 1, gen, model.WindowMonth)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLeaderboardCacheInvalidateBumpsGeneration(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	entries := []model.LeaderboardEntry{{UserID: 1, Amount: 3, Position: 1}}

	require.NoError(t, c.Set(ctx, 5, 0, model.WindowAllTime, entries, time.Time{}))
	require.NoError(t, c.Set(ctx, 6, 0, model.WindowAllTime, entries, time.Time{}))

	require.NoError(t, c.Invalidate(ctx, 5))

	gen, err := c.Generation(ctx, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 1, gen)
	_, ok, err := c.Get(ctx, 5, gen, model.WindowAllTime)
	require.NoError(t, err)
	assert.False(t, ok)

	// 失效前开始计算、失效后才写入的结果落在旧代数上
	require.NoError(t, c.Set(ctx, 5, 0, model.WindowAllTime, entries, time.Time{}))
	_, ok, err = c.Get(ctx, 5, gen, model.WindowAllTime)
	require.NoError(t, err)
	assert.False(t, ok)

	gen6, err := c.Generation(ctx, 6)
	require.NoError(t, err)
	_, ok, err = c.Get(ctx, 6, gen6, model.WindowAllTime)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaderboardCacheExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	entries := []model.LeaderboardEntry{{UserID: 1, Amount: 3, Position: 1}}

	require.NoError(t, c.Set(ctx, 6, 0, model.WindowAllTime, entries, time.Time{}))
	assert.Equal(t, time.Minute, mr.TTL(leaderboardKey(6, 0, model.WindowAllTime)))

	// 月榜在月底前过期
	require.NoError(t, c.Set(ctx, 6, 0, model.WindowMonth, entries, time.Now().Add(10*time.Second)))
	ttl := mr.TTL(leaderboardKey(6, 0, model.WindowMonth))
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 10*time.Second)

	// 已经过了截止时间的结果不写入
	require.NoError(t, c.Set(ctx, 7, 0, model.WindowMonth, entries, time.Now().Add(-time.Second)))
	assert.False(t, mr.Exists(leaderboardKey(7, 0, model.WindowMonth)))

	mr.FastForward(2 * time.Minute)
	_, ok, err := c.Get(ctx, 6, 0, model.WindowAllTime)
	require.NoError(t, err)
	assert.False(t, ok)
}
