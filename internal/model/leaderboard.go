package model

// LeaderboardWindow 排行榜统计的时间范围
type LeaderboardWindow string

const (
	WindowAllTime LeaderboardWindow = "all"
	WindowMonth   LeaderboardWindow = "month"  // 当前自然月
	WindowRecent  LeaderboardWindow = "recent" // 最近 12 小时
	WindowLive    LeaderboardWindow = "live"   // 最近活跃的一小批用户
)

func (w LeaderboardWindow) Valid() bool {
	switch w {
	case WindowAllTime, WindowMonth, WindowRecent, WindowLive:
		return true
	}
	return false
}

// LeaderboardEntry 排行榜条目，只在查询时计算，不落库
type LeaderboardEntry struct {
	UserID       int64  `json:"user_id"`
	UserFullName string `json:"user_full_name"`
	ProductName  string `json:"product_name"`
	Amount       int    `json:"amount"`
	Position     int    `json:"position"`
}
