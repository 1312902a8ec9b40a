package service

import (
	"context"
	"math"
	"sort"
	"time"

	"canteen/internal/model"
	"canteen/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const recentWindow = 12 * time.Hour

type LeaderboardService struct {
	productRepo    *repository.ProductRepository
	orderRepo      *repository.OrderRepository
	userRepo       *repository.UserRepository
	cache          LeaderboardCache
	liveSampleSize int
	logger         *zap.Logger
	now            func() time.Time
}

// NewLeaderboardService cache 可以为 nil，表示不缓存
func NewLeaderboardService(db *gorm.DB, cache LeaderboardCache, liveSampleSize int, logger *zap.Logger) *LeaderboardService {
	return &LeaderboardService{
		productRepo:    repository.NewProductRepository(db),
		orderRepo:      repository.NewOrderRepository(db),
		userRepo:       repository.NewUserRepository(db),
		cache:          cache,
		liveSampleSize: liveSampleSize,
		logger:         logger,
		now:            utcNow,
	}
}

// GetLeaderboard 按购买数量排名
//
// 时间范围之外的订单在聚合前就被排除。live 取最近下过单的 liveSampleSize 个用户，
// 统计他们在该商品上的全部数量，没有买过的用户数量为 0、名次为 0。
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, productID int64, window model.LeaderboardWindow) ([]model.LeaderboardEntry, error) {
	if !window.Valid() {
		return nil, ErrInvalidWindow
	}

	product, err := s.productRepo.GetByID(ctx, nil, productID)
	if err != nil {
		return nil, err
	}

	cacheable := s.cache != nil && (window == model.WindowAllTime || window == model.WindowMonth)
	var generation int64
	if cacheable {
		generation, err = s.cache.Generation(ctx, productID)
		if err != nil {
			s.logger.Warn("读取排行榜缓存代数失败", zap.Int64("product_id", productID), zap.Error(err))
			cacheable = false
		}
	}
	if cacheable {
		entries, ok, err := s.cache.Get(ctx, productID, generation, window)
		if err != nil {
			s.logger.Warn("读取排行榜缓存失败", zap.Int64("product_id", productID), zap.Error(err))
		} else if ok {
			return entries, nil
		}
	}

	var since *time.Time
	var sample []int64
	now := s.now()

	switch window {
	case model.WindowMonth:
		start := StartOfMonth(now)
		since = &start
	case model.WindowRecent:
		start := now.Add(-recentWindow)
		since = &start
	case model.WindowLive:
		sample, err = s.orderRepo.RecentBuyerIDs(ctx, s.liveSampleSize)
		if err != nil {
			return nil, err
		}
		if sample == nil {
			sample = []int64{}
		}
	}

	rows, err := s.orderRepo.ListQuantities(ctx, productID, since, sample)
	if err != nil {
		return nil, err
	}

	totals := AggregateQuantities(rows)
	for _, id := range sample {
		if _, ok := totals[id]; !ok {
			totals[id] = 0
		}
	}

	ids := make([]int64, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]model.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, model.LeaderboardEntry{
			UserID:       u.ID,
			UserFullName: u.Name,
			ProductName:  product.Name,
			Amount:       totals[u.ID],
		})
	}
	AssignPositions(entries)

	if cacheable {
		// 月榜不能跨月
		var notAfter time.Time
		if window == model.WindowMonth {
			notAfter = StartOfMonth(now).AddDate(0, 1, 0)
		}
		if err := s.cache.Set(ctx, productID, generation, window, entries, notAfter); err != nil {
			s.logger.Warn("写入排行榜缓存失败", zap.Int64("product_id", productID), zap.Error(err))
		}
	}
	return entries, nil
}

// Invalidate 订单变动后清除商品的排行榜缓存，失败只记日志
func (s *LeaderboardService) Invalidate(ctx context.Context, productIDs ...int64) {
	if s.cache == nil || len(productIDs) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, productIDs...); err != nil {
		s.logger.Warn("清除排行榜缓存失败", zap.Int64s("product_ids", productIDs), zap.Error(err))
	}
}

// AggregateQuantities 按用户汇总数量，溢出时停在 math.MaxInt
func AggregateQuantities(rows []repository.OrderQuantity) map[int64]int {
	totals := make(map[int64]int, len(rows))
	for _, row := range rows {
		totals[row.UserID] = SaturatingAdd(totals[row.UserID], row.Quantity)
	}
	return totals
}

func SaturatingAdd(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	if b < 0 && a < math.MinInt-b {
		return math.MinInt
	}
	return a + b
}

// AssignPositions 按数量倒序排序并计算名次
//
// 名次 = 1 + 数量严格大于自己的条目数，并列的条目名次相同，
// 例如 [10, 5, 5, 3] -> [1, 2, 2, 4]。数量为 0 的条目名次固定为 0。
// 同数量按姓名、用户ID排序，保证输出稳定。
func AssignPositions(entries []model.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		if a.UserFullName != b.UserFullName {
			return a.UserFullName < b.UserFullName
		}
		return a.UserID < b.UserID
	})

	for i := range entries {
		switch {
		case entries[i].Amount == 0:
			entries[i].Position = 0
		case i > 0 && entries[i].Amount == entries[i-1].Amount:
			entries[i].Position = entries[i-1].Position
		default:
			entries[i].Position = i + 1
		}
	}
}

// StartOfMonth 当前自然月第一天 00:00（UTC）
func StartOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
