package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User 用户表
// 余额（saldo）直接存放在用户行上，只允许通过账本函数修改
type User struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string          `gorm:"type:varchar(128);not null" json:"name"`
	Email     string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Balance   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance"`
	Version   int             `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
