package service

import (
	"context"
	"testing"
	"time"

	"canteen/internal/model"
	"canteen/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func (e *testEnv) createAchievement(t *testing.T, action model.Action, op model.ComparisonOperator, threshold int) *model.Achievement {
	t.Helper()
	a, err := e.achievements.CreateAchievement(context.Background(), &CreateAchievementRequest{
		Name:      string(action) + "-" + string(op),
		Action:    action,
		Operator:  op,
		Threshold: threshold,
	})
	require.NoError(t, err)
	return a
}

func (e *testEnv) entries(t *testing.T, userID int64) []model.AchievementEntry {
	t.Helper()
	entries, err := e.achievements.ListUserAchievements(context.Background(), userID)
	require.NoError(t, err)
	return entries
}

func TestUserBuyAchievementUnlockedOnce(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", "100")
	product := env.createProduct(t, "Cola", "1.00", 100)
	achievement := env.createAchievement(t, model.ActionUserBuy, model.OperatorGreaterThanOrEqual, 5)

	env.buy(t, user.ID, product.ID, 3)
	assert.Empty(t, env.entries(t, user.ID))

	env.buy(t, user.ID, product.ID, 2)
	entries := env.entries(t, user.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, achievement.ID, entries[0].AchievementID)
	assert.False(t, entries[0].HasSeen)

	env.buy(t, user.ID, product.ID, 1)
	assert.Len(t, env.entries(t, user.ID), 1)

	created, err := env.achievements.CheckUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestTotalBuyTruncates(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", "100")
	product := env.createProduct(t, "Sandwich", "4.99", 100)
	env.createAchievement(t, model.ActionTotalBuy, model.OperatorGreaterThanOrEqual, 5)

	env.buy(t, user.ID, product.ID, 1)
	assert.Empty(t, env.entries(t, user.ID), "4.99 truncates to 4")

	env.buy(t, user.ID, product.ID, 1)
	assert.Len(t, env.entries(t, user.ID), 1)
}

func TestTopUpAchievements(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", "0")
	env.createAchievement(t, model.ActionUserTopUp, model.OperatorGreaterThanOrEqual, 2)
	total := env.createAchievement(t, model.ActionTotalTopUp, model.OperatorGreaterThanOrEqual, 3)

	_, err := env.accounts.CreateTopUp(ctx, user.ID, decimal.RequireFromString("2.50"))
	require.NoError(t, err)
	assert.Empty(t, env.entries(t, user.ID), "2.50 rounds half to even")

	_, err = env.accounts.CreateTopUp(ctx, user.ID, decimal.RequireFromString("0.50"))
	require.NoError(t, err)

	entries := env.entries(t, user.ID)
	require.Len(t, entries, 2)
	ids := []int64{entries[0].AchievementID, entries[1].AchievementID}
	assert.Contains(t, ids, total.ID)
}

func TestYearsOfMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	veteran := env.createUser(t, "veteran", "100")
	newbie := env.createUser(t, "newbie", "100")
	product := env.createProduct(t, "Cola", "1.00", 100)
	env.createAchievement(t, model.ActionYearsOfMembership, model.OperatorGreaterThanOrEqual, 2)
	env.createAchievement(t, model.ActionYearsOfMembership, model.OperatorLessThan, 1)

	today := env.now
	env.now = today.AddDate(-2, 0, -10)
	env.buy(t, veteran.ID, product.ID, 1)
	env.now = today

	created, err := env.achievements.CheckUser(ctx, veteran.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, created)

	// 没有订单时会员年数无法计算，任何规则都不满足
	created, err = env.achievements.CheckUser(ctx, newbie.ID)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestAwardToUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", "0")
	achievement := env.createAchievement(t, model.ActionUserBuy, model.OperatorGreaterThan, 1000)

	ok, err := env.achievements.AwardToUser(ctx, user.ID, achievement.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.achievements.AwardToUser(ctx, user.ID, achievement.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = env.achievements.AwardToUser(ctx, user.ID, 999)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = env.achievements.AwardToUser(ctx, 999, achievement.ID)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestAwardToAllUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice", "0")
	env.createUser(t, "bob", "0")
	env.createUser(t, "carol", "0")
	achievement := env.createAchievement(t, model.ActionUserBuy, model.OperatorGreaterThan, 1000)

	_, err := env.achievements.AwardToUser(ctx, alice.ID, achievement.ID)
	require.NoError(t, err)

	n, err := env.achievements.AwardToAllUsers(ctx, achievement.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = env.achievements.AwardToAllUsers(ctx, achievement.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = env.achievements.AwardToAllUsers(ctx, 999)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMarkSeenAndDeleteEntries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", "0")
	achievement := env.createAchievement(t, model.ActionUserBuy, model.OperatorGreaterThan, 1000)

	_, err := env.achievements.AwardToAllUsers(ctx, achievement.ID)
	require.NoError(t, err)

	n, err := env.achievements.MarkSeen(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.True(t, env.entries(t, user.ID)[0].HasSeen)

	n, err = env.achievements.DeleteAllEntries(ctx, achievement.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Empty(t, env.entries(t, user.ID))

	_, err = env.achievements.DeleteAllEntries(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrAchievementNotFound)
}

func TestCreateAchievementValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.achievements.CreateAchievement(ctx, &CreateAchievementRequest{
		Name: "bad action", Action: "FLY", Operator: model.OperatorGreaterThan,
	})
	assert.ErrorIs(t, err, ErrInvalidAchievement)

	_, err = env.achievements.CreateAchievement(ctx, &CreateAchievementRequest{
		Name: "bad operator", Action: model.ActionUserBuy, Operator: "EQ",
	})
	assert.ErrorIs(t, err, ErrInvalidAchievement)
}

func TestMembershipYears(t *testing.T) {
	first := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want int64
	}{
		{"same day", first, 0},
		{"364 days", first.AddDate(0, 0, 364), 0},
		{"365 days", first.AddDate(0, 0, 365), 1},
		{"leap years drift", first.AddDate(4, 0, 0), 4},
		{"clock before first", first.Add(-time.Hour), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MembershipYears(first, tt.now))
		})
	}
}

func TestSumDecimals(t *testing.T) {
	values := []decimal.Decimal{
		decimal.RequireFromString("0.10"),
		decimal.RequireFromString("0.20"),
		decimal.RequireFromString("-0.05"),
	}
	assert.Equal(t, "0.25", SumDecimals(values).StringFixed(2))
	assert.True(t, SumDecimals(nil).IsZero())
}

func TestAchievementFailureKeepsPurchaseAndTopUp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	core, logs := observer.New(zap.ErrorLevel)
	env.achievements.logger = zap.New(core)

	env.createAchievement(t, model.ActionUserBuy, model.OperatorGreaterThan, 0)
	user := env.createUser(t, "alice", "100")
	product := env.createProduct(t, "Cola", "1.00", 10)
	require.NoError(t, env.db.Migrator().DropTable(&model.AchievementEntry{}))

	order := env.buy(t, user.ID, product.ID, 2)
	assert.NotZero(t, order.ID)
	assert.Equal(t, "98.00", env.balance(t, user.ID))
	assert.Equal(t, 8, env.stock(t, product.ID))

	_, err := env.accounts.CreateTopUp(ctx, user.ID, decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.Equal(t, "103.00", env.balance(t, user.ID))

	failures := logs.FilterMessage("成就检查失败")
	require.Equal(t, 2, failures.Len())
	assert.EqualValues(t, order.ID, failures.All()[0].ContextMap()["order_id"])
	assert.EqualValues(t, user.ID, failures.All()[1].ContextMap()["user_id"])
}
