package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TopUp 充值记录，金额可以为负（人工冲减）
type TopUp struct {
	ID        int64           `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserID    int64           `gorm:"index;not null" json:"user_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	CreatedAt time.Time       `gorm:"index;not null" json:"created_at"`
}

func (TopUp) TableName() string {
	return "top_ups"
}
