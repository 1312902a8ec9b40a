package repository

import (
	"context"
	"errors"

	"canteen/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.User, error) {
	if tx == nil {
		tx = r.db
	}
	var user model.User
	err := tx.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListByIDs 按 ID 批量查询，任何一个 ID 不存在都返回 ErrUserNotFound
func (r *UserRepository) ListByIDs(ctx context.Context, ids []int64) ([]model.User, error) {
	users, err := r.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(users) != len(uniqueIDs(ids)) {
		return nil, ErrUserNotFound
	}
	return users, nil
}

// FindByIDs 与 ListByIDs 相同，但忽略不存在的 ID
func (r *UserRepository) FindByIDs(ctx context.Context, ids []int64) ([]model.User, error) {
	users := make([]model.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", uniqueIDs(ids)).Order("id ASC").Find(&users).Error
	return users, err
}

// AdjustBalance 在事务 tx 中把余额加上 delta（可为负），返回变动前后的余额
//
// 读取时记下版本号，写入时以版本号为条件，期间如果有其他事务改过这一行，
// 影响行数为 0，返回 ErrConflict，由 UnitOfWork 重试。
func (r *UserRepository) AdjustBalance(ctx context.Context, tx *gorm.DB, userID int64, delta decimal.Decimal) (before, after decimal.Decimal, err error) {
	user, err := r.GetByID(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	before = user.Balance
	after = before.Add(delta)

	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND version = ?", userID, user.Version).
		Updates(map[string]interface{}{
			"balance": after,
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return decimal.Zero, decimal.Zero, result.Error
	}
	if result.RowsAffected == 0 {
		return decimal.Zero, decimal.Zero, ErrConflict
	}

	return before, after, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
