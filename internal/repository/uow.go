package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// UnitOfWork 把多行写入包在一个数据库事务里
//
// 事务内的余额、库存更新都带版本号条件，版本不一致时返回 ErrConflict，
// 此时整个事务回滚，Do 会用新的读取结果重新执行 fn，最多 maxRetries 次。
// 因此 fn 必须可以重复执行：不要在 fn 外部预先修改会被写入的对象。
type UnitOfWork struct {
	db         *gorm.DB
	maxRetries int
}

func NewUnitOfWork(db *gorm.DB, maxRetries int) *UnitOfWork {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &UnitOfWork{db: db, maxRetries: maxRetries}
}

func (u *UnitOfWork) Do(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt <= u.maxRetries; attempt++ {
		err = u.db.WithContext(ctx).Transaction(fn)
		if !errors.Is(err, ErrConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}
