package repository

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("记录不存在")
	ErrConflict = errors.New("乐观锁冲突，请重试")
)

// 具体实体的 NotFound 都包装 ErrNotFound，调用方可以统一用 errors.Is(err, ErrNotFound) 判断
var (
	ErrUserNotFound        = fmt.Errorf("用户%w", ErrNotFound)
	ErrProductNotFound     = fmt.Errorf("商品%w", ErrNotFound)
	ErrOrderNotFound       = fmt.Errorf("订单%w", ErrNotFound)
	ErrTopUpNotFound       = fmt.Errorf("充值%w", ErrNotFound)
	ErrAchievementNotFound = fmt.Errorf("成就%w", ErrNotFound)
)
