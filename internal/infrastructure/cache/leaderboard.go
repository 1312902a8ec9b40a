package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"canteen/internal/model"

	"github.com/go-redis/redis/v8"
)

// LeaderboardCache 用 Redis 缓存排行榜计算结果
//
// 每个商品有一个代数计数器 leaderboard:product:<id>:gen，结果存放在
// leaderboard:product:<id>:<gen>:<window>。订单变动时 INCR 代数，
// 旧代数下的结果（包括和这次变动并发计算、稍后才写入的结果）不会再被读到，只等过期。
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

func generationKey(productID int64) string {
	return fmt.Sprintf("leaderboard:product:%d:gen", productID)
}

func leaderboardKey(productID, generation int64, window model.LeaderboardWindow) string {
	return fmt.Sprintf("leaderboard:product:%d:%d:%s", productID, generation, window)
}

// Generation 当前代数，从未失效过的商品为 0
func (c *LeaderboardCache) Generation(ctx context.Context, productID int64) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(productID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Get 未命中时返回 (nil, false, nil)
func (c *LeaderboardCache) Get(ctx context.Context, productID, generation int64, window model.LeaderboardWindow) ([]model.LeaderboardEntry, bool, error) {
	data, err := c.client.Get(ctx, leaderboardKey(productID, generation, window)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var entries []model.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

// Set 写入 generation 代的结果；notAfter 非零时过期时间不超过它
func (c *LeaderboardCache) Set(ctx context.Context, productID, generation int64, window model.LeaderboardWindow, entries []model.LeaderboardEntry, notAfter time.Time) error {
	ttl := c.ttl
	if !notAfter.IsZero() {
		remaining := time.Until(notAfter)
		if remaining <= 0 {
			return nil
		}
		if remaining < ttl {
			ttl = remaining
		}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, leaderboardKey(productID, generation, window), data, ttl).Err()
}

// Invalidate 商品代数加一，之前缓存的所有窗口随之失效
func (c *LeaderboardCache) Invalidate(ctx context.Context, productIDs ...int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	pipe := c.client.TxPipeline()
	for _, id := range productIDs {
		pipe.Incr(ctx, generationKey(id))
	}
	_, err := pipe.Exec(ctx)
	return err
}
