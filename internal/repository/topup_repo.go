package repository

import (
	"context"
	"errors"

	"canteen/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TopUpRepository struct {
	db *gorm.DB
}

func NewTopUpRepository(db *gorm.DB) *TopUpRepository {
	return &TopUpRepository{db: db}
}

func (r *TopUpRepository) Create(ctx context.Context, tx *gorm.DB, topUp *model.TopUp) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(topUp).Error
}

func (r *TopUpRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.TopUp, error) {
	if tx == nil {
		tx = r.db
	}
	var topUp model.TopUp
	err := tx.WithContext(ctx).Where("id = ?", id).First(&topUp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTopUpNotFound
		}
		return nil, err
	}
	return &topUp, nil
}

func (r *TopUpRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Where("id = ?", id).Delete(&model.TopUp{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTopUpNotFound
	}
	return nil
}

func (r *TopUpRepository) ListByUserID(ctx context.Context, userID int64) ([]model.TopUp, error) {
	topUps := make([]model.TopUp, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&topUps).Error
	return topUps, err
}

func (r *TopUpRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.TopUp{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *TopUpRepository) ListAmountsByUser(ctx context.Context, userID int64) ([]decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&model.TopUp{}).
		Where("user_id = ?", userID).
		Pluck("amount", &amounts).Error
	return amounts, err
}
