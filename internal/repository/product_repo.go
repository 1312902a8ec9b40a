package repository

import (
	"context"
	"errors"

	"canteen/internal/model"

	"gorm.io/gorm"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *ProductRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Product, error) {
	if tx == nil {
		tx = r.db
	}
	var product model.Product
	err := tx.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (r *ProductRepository) ListByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	products := make([]model.Product, 0, len(ids))
	if len(ids) == 0 {
		return products, nil
	}
	unique := uniqueIDs(ids)
	err := r.db.WithContext(ctx).Where("id IN ?", unique).Order("id ASC").Find(&products).Error
	if err != nil {
		return nil, err
	}
	if len(products) != len(unique) {
		return nil, ErrProductNotFound
	}
	return products, nil
}

// AdjustStock 在事务 tx 中把库存加上 delta，不做下限校验
func (r *ProductRepository) AdjustStock(ctx context.Context, tx *gorm.DB, productID int64, delta int) (before, after int, err error) {
	product, err := r.GetByID(ctx, tx, productID)
	if err != nil {
		return 0, 0, err
	}

	before = product.Stock
	after = before + delta

	result := tx.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND version = ?", productID, product.Version).
		Updates(map[string]interface{}{
			"stock":   after,
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return 0, 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, 0, ErrConflict
	}

	return before, after, nil
}
