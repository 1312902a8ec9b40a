package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 消费记录
// Quantity 和 Paid 必须与实际扣减的库存、余额完全一致，创建后只能整条删除冲正
type Order struct {
	ID          int64           `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserID      int64           `gorm:"index;not null" json:"user_id"`
	ProductID   *int64          `gorm:"index" json:"product_id"`
	ProductName string          `gorm:"type:varchar(128);not null" json:"product_name"` // 下单时的商品名快照
	Quantity    int             `gorm:"not null" json:"quantity"`
	Paid        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"paid"`
	CreatedAt   time.Time       `gorm:"index;not null" json:"created_at"`
}

func (Order) TableName() string {
	return "orders"
}
