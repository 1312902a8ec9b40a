package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeTopUp           = "TOP_UP"
	TransactionTypeTopUpReversal   = "TOP_UP_REVERSAL"
	TransactionTypePurchase        = "PURCHASE"
	TransactionTypePurchaseReverse = "PURCHASE_REVERSAL"
)

// AccountTransaction 余额流水
// 只追加不修改；每一次余额变动都记录变动前后的余额，便于对账。
// 订单、充值被删除冲正时，原流水保留，另记一条反向流水。
type AccountTransaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64           `gorm:"index;not null" json:"user_id"`
	ReferenceID   int64           `gorm:"index;not null" json:"reference_id"` // 订单或充值记录ID
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Type          string          `gorm:"type:varchar(20);not null" json:"type"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_after"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AccountTransaction) TableName() string {
	return "account_transaction"
}
