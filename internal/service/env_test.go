package service

import (
	"context"
	"testing"
	"time"

	"canteen/internal/infrastructure/database"
	"canteen/internal/model"
	"canteen/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type nopLocker struct{}

func (nopLocker) Acquire(context.Context, ...string) (func(), error) {
	return func() {}, nil
}

type testEnv struct {
	db           *gorm.DB
	now          time.Time
	ledger       *Ledger
	accounts     *AccountService
	orders       *OrderService
	achievements *AchievementService
	leaderboard  *LeaderboardService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 每个连接都是一个独立的内存库，只保留一个
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	log := zap.NewNop()
	env := &testEnv{
		db:  db,
		now: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }

	env.ledger = NewLedger(db)
	env.ledger.now = clock
	env.achievements = NewAchievementService(db, log)
	env.achievements.now = clock
	env.leaderboard = NewLeaderboardService(db, nil, 3, log)
	env.leaderboard.now = clock

	uow := repository.NewUnitOfWork(db, 3)
	env.accounts = NewAccountService(db, uow, nopLocker{}, env.ledger, env.achievements, log)
	env.orders = NewOrderService(db, uow, nopLocker{}, env.ledger, env.achievements, env.leaderboard, "canteen.purchase", log)
	return env
}

func (e *testEnv) createUser(t *testing.T, name, balance string) *model.User {
	t.Helper()
	user := &model.User{
		Name:    name,
		Email:   name + "@example.com",
		Balance: decimal.RequireFromString(balance),
	}
	require.NoError(t, repository.NewUserRepository(e.db).Create(context.Background(), user))
	return user
}

func (e *testEnv) createProduct(t *testing.T, name, price string, stock int) *model.Product {
	t.Helper()
	product := &model.Product{
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
	require.NoError(t, repository.NewProductRepository(e.db).Create(context.Background(), product))
	return product
}

func (e *testEnv) balance(t *testing.T, userID int64) string {
	t.Helper()
	b, err := e.accounts.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b.StringFixed(2)
}

func (e *testEnv) stock(t *testing.T, productID int64) int {
	t.Helper()
	p, err := repository.NewProductRepository(e.db).GetByID(context.Background(), nil, productID)
	require.NoError(t, err)
	return p.Stock
}

// buy 在 e.now 时刻为单个用户下单
func (e *testEnv) buy(t *testing.T, userID, productID int64, quantity int) model.Order {
	t.Helper()
	orders, err := e.orders.CreateOrder(context.Background(), &CreateOrderRequest{
		ProductIDs: []int64{productID},
		UserIDs:    []int64{userID},
		Quantity:   quantity,
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	return orders[0]
}
