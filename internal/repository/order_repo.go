package repository

import (
	"context"
	"errors"
	"time"

	"canteen/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Order, error) {
	if tx == nil {
		tx = r.db
	}
	var order model.Order
	err := tx.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Where("id = ?", id).Delete(&model.Order{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) ListByUserID(ctx context.Context, userID int64) ([]model.Order, error) {
	orders := make([]model.Order, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (r *OrderRepository) SumQuantityByUser(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return total, err
}

// ListPaidByUser 返回用户每笔订单的实付金额，由调用方用 decimal 求和，避免数据库端浮点误差
func (r *OrderRepository) ListPaidByUser(ctx context.Context, userID int64) ([]decimal.Decimal, error) {
	var paid []decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("user_id = ?", userID).
		Pluck("paid", &paid).Error
	return paid, err
}

// EarliestByUser 返回用户最早的一笔订单，没有订单时返回 nil
func (r *OrderRepository) EarliestByUser(ctx context.Context, userID int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// OrderQuantity 排行榜聚合前的原始行
type OrderQuantity struct {
	UserID   int64
	Quantity int
}

// ListQuantities 查询某商品的订单数量
// since 为 nil 表示不限时间；userIDs 为 nil 表示不限用户
func (r *OrderRepository) ListQuantities(ctx context.Context, productID int64, since *time.Time, userIDs []int64) ([]OrderQuantity, error) {
	rows := make([]OrderQuantity, 0)

	query := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Select("user_id, quantity").
		Where("product_id = ?", productID)
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}
	if userIDs != nil {
		if len(userIDs) == 0 {
			return rows, nil
		}
		query = query.Where("user_id IN ?", userIDs)
	}

	err := query.Scan(&rows).Error
	return rows, err
}

// RecentBuyerIDs 按最近一次下单时间倒序返回用户ID
func (r *OrderRepository) RecentBuyerIDs(ctx context.Context, limit int) ([]int64, error) {
	ids := make([]int64, 0, limit)
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Select("user_id").
		Group("user_id").
		Order("MAX(created_at) DESC").
		Limit(limit).
		Pluck("user_id", &ids).Error
	return ids, err
}
