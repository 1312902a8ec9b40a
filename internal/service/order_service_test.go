package service

import (
	"context"
	"encoding/json"
	"testing"

	"canteen/internal/model"
	"canteen/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndDeleteOrderIsExactReversal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", "20")
	product := env.createProduct(t, "Cola", "1.50", 10)

	order := env.buy(t, user.ID, product.ID, 3)
	assert.Equal(t, "4.50", order.Paid.StringFixed(2))
	assert.Equal(t, "Cola", order.ProductName)
	assert.Equal(t, "15.50", env.balance(t, user.ID))
	assert.Equal(t, 7, env.stock(t, product.ID))

	require.NoError(t, env.orders.DeleteOrder(ctx, order.ID))
	assert.Equal(t, "20.00", env.balance(t, user.ID))
	assert.Equal(t, 10, env.stock(t, product.ID))

	orders, err := env.orders.ListOrders(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateOrderSplit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice", "10")
	bob := env.createUser(t, "bob", "10")
	carol := env.createUser(t, "carol", "10")
	product := env.createProduct(t, "Pizza", "1.00", 5)

	orders, err := env.orders.CreateOrder(ctx, &CreateOrderRequest{
		ProductIDs: []int64{product.ID},
		UserIDs:    []int64{alice.ID, bob.ID, carol.ID},
		Quantity:   2,
		Split:      true,
	})
	require.NoError(t, err)
	require.Len(t, orders, 3)

	for _, o := range orders {
		assert.Equal(t, 0, o.Quantity)
		assert.Equal(t, "0.67", o.Paid.StringFixed(2))
	}
	assert.Equal(t, "9.33", env.balance(t, alice.ID))
	assert.Equal(t, 5, env.stock(t, product.ID))
}

func TestCreateOrderAllowsNegativeBalanceAndStock(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", "1")
	product := env.createProduct(t, "Beer", "2.00", 1)

	env.buy(t, user.ID, product.ID, 2)
	assert.Equal(t, "-3.00", env.balance(t, user.ID))
	assert.Equal(t, -1, env.stock(t, product.ID))
}

func TestCreateOrderNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", "10")
	product := env.createProduct(t, "Beer", "2.00", 1)

	_, err := env.orders.CreateOrder(ctx, &CreateOrderRequest{
		ProductIDs: []int64{product.ID, 999},
		UserIDs:    []int64{user.ID},
		Quantity:   1,
	})
	assert.ErrorIs(t, err, repository.ErrProductNotFound)

	_, err = env.orders.CreateOrder(ctx, &CreateOrderRequest{
		ProductIDs: []int64{product.ID},
		UserIDs:    []int64{user.ID, 999},
		Quantity:   1,
	})
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	// 失败的下单不能留下任何扣减
	assert.Equal(t, "10.00", env.balance(t, user.ID))
	assert.Equal(t, 1, env.stock(t, product.ID))
}

func TestCreateOrderInvalidQuantity(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", "10")
	product := env.createProduct(t, "Beer", "2.00", 1)

	_, err := env.orders.CreateOrder(context.Background(), &CreateOrderRequest{
		ProductIDs: []int64{product.ID},
		UserIDs:    []int64{user.ID},
		Quantity:   0,
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCreateOrderEmptySelection(t *testing.T) {
	env := newTestEnv(t)

	orders, err := env.orders.CreateOrder(context.Background(), &CreateOrderRequest{Quantity: 1})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestDeleteOrderNotFound(t *testing.T) {
	env := newTestEnv(t)

	err := env.orders.DeleteOrder(context.Background(), 42)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestDeleteOrderAfterProductRemoved(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", "10")
	product := env.createProduct(t, "Chips", "2.00", 3)

	order := env.buy(t, user.ID, product.ID, 1)
	require.NoError(t, env.db.Delete(&model.Product{}, product.ID).Error)

	require.NoError(t, env.orders.DeleteOrder(ctx, order.ID))
	assert.Equal(t, "10.00", env.balance(t, user.ID))
}

func TestCreateOrderEnqueuesPurchaseNotification(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", "10")
	product := env.createProduct(t, "Mate", "3.00", 3)

	order := env.buy(t, user.ID, product.ID, 2)

	messages, err := repository.NewOutboxRepository(env.db).GetPendingMessages(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "canteen.purchase", messages[0].Topic)

	var n model.PurchaseNotification
	require.NoError(t, json.Unmarshal([]byte(messages[0].Payload), &n))
	assert.Equal(t, "alice", n.UserName)
	assert.Equal(t, "Mate", n.ProductName)
	assert.Equal(t, 2, n.Quantity)
	assert.True(t, n.Timestamp.Equal(order.CreatedAt))
}
