package service

import (
	"context"
	"errors"
	"time"

	"canteen/internal/model"
	"canteen/internal/repository"
	"canteen/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ledger 余额账本和库存调整
//
// 所有方法都必须在 UnitOfWork 提供的事务 tx 中调用：记录的写入/删除和
// 余额、库存的变动一起提交或一起回滚。冲正使用原记录上的金额和数量，
// 因此 创建 -> 删除 之后余额、库存与创建前完全一致。
type Ledger struct {
	userRepo        *repository.UserRepository
	productRepo     *repository.ProductRepository
	orderRepo       *repository.OrderRepository
	topUpRepo       *repository.TopUpRepository
	transactionRepo *repository.TransactionRepository
	now             func() time.Time
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{
		userRepo:        repository.NewUserRepository(db),
		productRepo:     repository.NewProductRepository(db),
		orderRepo:       repository.NewOrderRepository(db),
		topUpRepo:       repository.NewTopUpRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		now:             utcNow,
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// ApplyTopUp 充值：余额 += amount，写入充值记录
func (l *Ledger) ApplyTopUp(ctx context.Context, tx *gorm.DB, userID int64, amount decimal.Decimal) (*model.TopUp, error) {
	topUp := &model.TopUp{
		ID:        idgen.NextID(),
		UserID:    userID,
		Amount:    amount,
		CreatedAt: l.now(),
	}

	before, after, err := l.userRepo.AdjustBalance(ctx, tx, userID, amount)
	if err != nil {
		return nil, err
	}
	if err := l.topUpRepo.Create(ctx, tx, topUp); err != nil {
		return nil, err
	}
	if err := l.journal(ctx, tx, userID, topUp.ID, amount, model.TransactionTypeTopUp, before, after); err != nil {
		return nil, err
	}
	return topUp, nil
}

// ReverseTopUp 删除充值记录并扣回金额
func (l *Ledger) ReverseTopUp(ctx context.Context, tx *gorm.DB, topUpID int64) (*model.TopUp, error) {
	topUp, err := l.topUpRepo.GetByID(ctx, tx, topUpID)
	if err != nil {
		return nil, err
	}

	delta := topUp.Amount.Neg()
	before, after, err := l.userRepo.AdjustBalance(ctx, tx, topUp.UserID, delta)
	if err != nil {
		return nil, err
	}
	if err := l.topUpRepo.Delete(ctx, tx, topUp.ID); err != nil {
		return nil, err
	}
	if err := l.journal(ctx, tx, topUp.UserID, topUp.ID, delta, model.TransactionTypeTopUpReversal, before, after); err != nil {
		return nil, err
	}
	return topUp, nil
}

// ApplyOrderDebit 消费：余额 -= paid，库存 -= quantity，写入订单
func (l *Ledger) ApplyOrderDebit(ctx context.Context, tx *gorm.DB, line OrderLine) (*model.Order, error) {
	productID := line.Product.ID
	order := &model.Order{
		ID:          idgen.NextID(),
		UserID:      line.User.ID,
		ProductID:   &productID,
		ProductName: line.Product.Name,
		Quantity:    line.Quantity,
		Paid:        line.Paid,
		CreatedAt:   l.now(),
	}

	delta := line.Paid.Neg()
	before, after, err := l.userRepo.AdjustBalance(ctx, tx, order.UserID, delta)
	if err != nil {
		return nil, err
	}
	if err := l.AdjustStock(ctx, tx, productID, -line.Quantity); err != nil {
		return nil, err
	}
	if err := l.orderRepo.Create(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := l.journal(ctx, tx, order.UserID, order.ID, delta, model.TransactionTypePurchase, before, after); err != nil {
		return nil, err
	}
	return order, nil
}

// ReverseOrderDebit 删除订单，退回金额和库存
// 商品已经被删除时只退金额
func (l *Ledger) ReverseOrderDebit(ctx context.Context, tx *gorm.DB, orderID int64) (*model.Order, error) {
	order, err := l.orderRepo.GetByID(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	before, after, err := l.userRepo.AdjustBalance(ctx, tx, order.UserID, order.Paid)
	if err != nil {
		return nil, err
	}
	if order.ProductID != nil {
		err := l.AdjustStock(ctx, tx, *order.ProductID, order.Quantity)
		if err != nil && !errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
	}
	if err := l.orderRepo.Delete(ctx, tx, order.ID); err != nil {
		return nil, err
	}
	if err := l.journal(ctx, tx, order.UserID, order.ID, order.Paid, model.TransactionTypePurchaseReverse, before, after); err != nil {
		return nil, err
	}
	return order, nil
}

// AdjustStock 库存 += delta，不设下限
func (l *Ledger) AdjustStock(ctx context.Context, tx *gorm.DB, productID int64, delta int) error {
	_, _, err := l.productRepo.AdjustStock(ctx, tx, productID, delta)
	return err
}

func (l *Ledger) journal(ctx context.Context, tx *gorm.DB, userID, referenceID int64, amount decimal.Decimal, txType string, before, after decimal.Decimal) error {
	return l.transactionRepo.Create(ctx, tx, &model.AccountTransaction{
		UserID:        userID,
		ReferenceID:   referenceID,
		Amount:        amount,
		Type:          txType,
		BalanceBefore: before,
		BalanceAfter:  after,
	})
}
