package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product 商品表
// 库存没有下限，允许为负数
type Product struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string          `gorm:"type:varchar(128);not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Stock     int             `gorm:"not null;default:0" json:"stock"`
	Version   int             `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}
