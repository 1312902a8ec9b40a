package model

import "time"

// Action 成就统计的指标
type Action string

const (
	ActionUserBuy           Action = "USER_BUY"            // 累计购买数量
	ActionTotalBuy          Action = "TOTAL_BUY"           // 累计消费金额（取整）
	ActionUserTopUp         Action = "USER_TOP_UP"         // 充值次数
	ActionTotalTopUp        Action = "TOTAL_TOP_UP"        // 累计充值金额（四舍五入）
	ActionYearsOfMembership Action = "YEARS_OF_MEMBERSHIP" // 自首笔消费起的整年数
)

func (a Action) Valid() bool {
	switch a {
	case ActionUserBuy, ActionTotalBuy, ActionUserTopUp, ActionTotalTopUp, ActionYearsOfMembership:
		return true
	}
	return false
}

// ComparisonOperator 成就阈值的比较方式
type ComparisonOperator string

const (
	OperatorLessThan           ComparisonOperator = "LT"
	OperatorGreaterThan        ComparisonOperator = "GT"
	OperatorLessThanOrEqual    ComparisonOperator = "LTE"
	OperatorGreaterThanOrEqual ComparisonOperator = "GTE"
)

// Evaluate 计算 actual <op> threshold，未知的比较符一律返回 false
func (op ComparisonOperator) Evaluate(actual, threshold int64) bool {
	switch op {
	case OperatorLessThan:
		return actual < threshold
	case OperatorGreaterThan:
		return actual > threshold
	case OperatorLessThanOrEqual:
		return actual <= threshold
	case OperatorGreaterThanOrEqual:
		return actual >= threshold
	default:
		return false
	}
}

// Achievement 成就定义，由管理员创建
type Achievement struct {
	ID          int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string             `gorm:"type:varchar(128);not null" json:"name"`
	Description string             `gorm:"type:varchar(512)" json:"description"`
	Action      Action             `gorm:"type:varchar(32);not null" json:"action"`
	Operator    ComparisonOperator `gorm:"type:varchar(8);not null" json:"operator"`
	Threshold   int                `gorm:"not null" json:"threshold"`
	CreatedAt   time.Time          `gorm:"autoCreateTime" json:"created_at"`
}

func (Achievement) TableName() string {
	return "achievement"
}

// AchievementEntry 用户获得的成就
// (achievement_id, user_id) 上有唯一索引，并发评估时由数据库兜底去重
type AchievementEntry struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AchievementID int64     `gorm:"uniqueIndex:idx_entry_achievement_user;not null" json:"achievement_id"`
	UserID        int64     `gorm:"uniqueIndex:idx_entry_achievement_user;index;not null" json:"user_id"`
	HasSeen       bool      `gorm:"not null;default:false" json:"has_seen"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AchievementEntry) TableName() string {
	return "achievement_entry"
}
