package service

import (
	"context"
	"errors"
	"time"

	"canteen/internal/model"

	"gorm.io/gorm"
)

var (
	ErrInvalidAmount      = errors.New("金额不能为0且最多两位小数")
	ErrInvalidQuantity    = errors.New("数量必须大于0")
	ErrInvalidWindow      = errors.New("不支持的排行榜时间范围")
	ErrInvalidAchievement = errors.New("成就规则不合法")
)

// Transactor 原子的多行写入，repository.UnitOfWork 实现了它
type Transactor interface {
	Do(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Locker 按 key 串行化写操作，lock.KeyLocker 实现了它
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}

// LeaderboardCache 排行榜缓存，cache.LeaderboardCache 实现了它
//
// 结果按商品的代数存放：Invalidate 使代数加一，
// 查询前读取代数、算完后写入同一代数，期间有订单变动则这次写入不会再被读到。
type LeaderboardCache interface {
	Generation(ctx context.Context, productID int64) (int64, error)
	Get(ctx context.Context, productID, generation int64, window model.LeaderboardWindow) ([]model.LeaderboardEntry, bool, error)
	Set(ctx context.Context, productID, generation int64, window model.LeaderboardWindow, entries []model.LeaderboardEntry, notAfter time.Time) error
	Invalidate(ctx context.Context, productIDs ...int64) error
}
