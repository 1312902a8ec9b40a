package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 场景：同一个用户在两台收银机上同时下单，或者下单的同时管理员在给他充值
//
// 如果没有分布式锁（也没有版本号）：
//   goroutine1: 读余额=100 -> 写 100-3.5=96.5
//   goroutine2: 读余额=100 -> 写 100+50=150     第一笔扣款丢了！
//
// 加了分布式锁：
//   goroutine1: 获取锁 -> 读余额=100 -> 写96.5 -> 释放锁
//   goroutine2: 等待... -> 获取锁 -> 读余额=96.5 -> 写146.5
//
// 余额、库存的写入本身还带乐观锁版本号，锁过期等极端情况下依然不会丢更新。
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证原子性
//   - 先检查 value 是否是自己的
//   - 再删除 key
//
// ============================================================================

var ErrLockFailed = errors.New("获取分布式锁失败")

// DistributedLock 单个 key 的 Redis 锁，value 标识持有者
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock SET key value NX EX，只尝试一次
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 最多尝试 maxRetries 次，每次间隔 retryInterval
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	for i := 0; i < maxRetries; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if i == maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// unlockScript 只删除 value 仍是自己的锁：锁过期后可能已经被别的请求拿走
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *DistributedLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}

// ============================================================================
// 多 key 加锁：按用户、商品维度
// ============================================================================

// KeyLocker 一次锁住多个 key
//
// 一笔拆分订单会同时涉及多个用户和多个商品，所有 key 排序后依次加锁，
// 两个请求的 key 有交集时加锁顺序一致，不会互相等待形成死锁。
type KeyLocker struct {
	client        *redis.Client
	expiration    time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewKeyLocker(client *redis.Client, expiration, retryInterval time.Duration, maxRetries int) *KeyLocker {
	return &KeyLocker{
		client:        client,
		expiration:    expiration,
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
	}
}

// Acquire 获取全部锁，返回的 release 用于释放；任何一个失败都会释放已获取的锁
func (k *KeyLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	sorted := dedupSorted(keys)
	owner := uuid.NewString()

	held := make([]*DistributedLock, 0, len(sorted))
	release := func() {
		// 解锁不受调用方 ctx 取消影响
		unlockCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			_ = held[i].Unlock(unlockCtx)
		}
	}

	for _, key := range sorted {
		l := NewDistributedLock(k.client, key, owner, k.expiration)
		if err := l.Lock(ctx, k.retryInterval, k.maxRetries); err != nil {
			release()
			return nil, fmt.Errorf("%w: %s", err, key)
		}
		held = append(held, l)
	}
	return release, nil
}

func UserKey(userID int64) string {
	return fmt.Sprintf("canteen:lock:user:%d", userID)
}

func ProductKey(productID int64) string {
	return fmt.Sprintf("canteen:lock:product:%d", productID)
}

func dedupSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
