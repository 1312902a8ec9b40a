package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"canteen/internal/infrastructure/lock"
	"canteen/internal/model"
	"canteen/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OrderService struct {
	uow           Transactor
	locker        Locker
	ledger        *Ledger
	achievements  *AchievementService
	leaderboard   *LeaderboardService
	userRepo      *repository.UserRepository
	productRepo   *repository.ProductRepository
	orderRepo     *repository.OrderRepository
	outboxRepo    *repository.OutboxRepository
	purchaseTopic string
	logger        *zap.Logger
}

func NewOrderService(
	db *gorm.DB,
	uow Transactor,
	locker Locker,
	ledger *Ledger,
	achievements *AchievementService,
	leaderboard *LeaderboardService,
	purchaseTopic string,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		uow:           uow,
		locker:        locker,
		ledger:        ledger,
		achievements:  achievements,
		leaderboard:   leaderboard,
		userRepo:      repository.NewUserRepository(db),
		productRepo:   repository.NewProductRepository(db),
		orderRepo:     repository.NewOrderRepository(db),
		outboxRepo:    repository.NewOutboxRepository(db),
		purchaseTopic: purchaseTopic,
		logger:        logger,
	}
}

type CreateOrderRequest struct {
	ProductIDs []int64 `json:"product_ids"`
	UserIDs    []int64 `json:"user_ids"`
	Quantity   int     `json:"quantity"`
	Split      bool    `json:"split"`
}

// CreateOrder 下单
//
// 流程：
// 1. 查询商品和用户，任意一个不存在返回 NotFound
// 2. 按是否拆分计算每个用户每个商品的消费行
// 3. 锁住涉及的所有用户和商品
// 4. 一个事务内完成：扣余额、扣库存、写订单、写 outbox 消息
// 5. 提交后检查成就，失败只记录日志，不影响已经完成的消费
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) ([]model.Order, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	products, err := s.productRepo.ListByIDs(ctx, req.ProductIDs)
	if err != nil {
		return nil, err
	}
	users, err := s.userRepo.ListByIDs(ctx, req.UserIDs)
	if err != nil {
		return nil, err
	}

	lines := CalculateSplit(products, users, req.Quantity, req.Split)
	if len(lines) == 0 {
		return []model.Order{}, nil
	}

	keys := make([]string, 0, len(users)+len(products))
	for _, u := range users {
		keys = append(keys, lock.UserKey(u.ID))
	}
	for _, p := range products {
		keys = append(keys, lock.ProductKey(p.ID))
	}
	release, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer release()

	var orders []model.Order
	err = s.uow.Do(ctx, func(tx *gorm.DB) error {
		orders = make([]model.Order, 0, len(lines))
		for _, line := range lines {
			order, err := s.ledger.ApplyOrderDebit(ctx, tx, line)
			if err != nil {
				return fmt.Errorf("扣款失败: %w", err)
			}
			if err := s.enqueuePurchase(ctx, tx, line.User.Name, order); err != nil {
				return fmt.Errorf("写入消息失败: %w", err)
			}
			orders = append(orders, *order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, order := range orders {
		s.logger.Info("消费成功",
			zap.Int64("order_id", order.ID),
			zap.Int64("user_id", order.UserID),
			zap.String("product", order.ProductName),
			zap.Int("quantity", order.Quantity),
			zap.String("paid", order.Paid.StringFixed(2)),
		)
	}

	productIDs := make([]int64, 0, len(products))
	for _, p := range products {
		productIDs = append(productIDs, p.ID)
	}
	s.leaderboard.Invalidate(ctx, productIDs...)

	for i := range orders {
		s.achievements.CheckOrderBestEffort(ctx, &orders[i])
	}

	return orders, nil
}

// DeleteOrder 删除订单，退回余额和库存
func (s *OrderService) DeleteOrder(ctx context.Context, orderID int64) error {
	order, err := s.orderRepo.GetByID(ctx, nil, orderID)
	if err != nil {
		return err
	}

	keys := []string{lock.UserKey(order.UserID)}
	if order.ProductID != nil {
		keys = append(keys, lock.ProductKey(*order.ProductID))
	}
	release, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer release()

	err = s.uow.Do(ctx, func(tx *gorm.DB) error {
		_, err := s.ledger.ReverseOrderDebit(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("订单已冲正",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.String("paid", order.Paid.StringFixed(2)),
		zap.Int("quantity", order.Quantity),
	)

	if order.ProductID != nil {
		s.leaderboard.Invalidate(ctx, *order.ProductID)
	}
	return nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	if _, err := s.userRepo.GetByID(ctx, nil, userID); err != nil {
		return nil, err
	}
	return s.orderRepo.ListByUserID(ctx, userID)
}

func (s *OrderService) enqueuePurchase(ctx context.Context, tx *gorm.DB, userName string, order *model.Order) error {
	payload, err := json.Marshal(model.PurchaseNotification{
		UserName:    userName,
		ProductName: order.ProductName,
		Quantity:    order.Quantity,
		Timestamp:   order.CreatedAt,
	})
	if err != nil {
		return err
	}

	return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: strconv.FormatInt(order.ID, 10),
		Topic:      s.purchaseTopic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}
