package market

import "time"

// A 股交易时段（分钟数，自 00:00 起算）。
const (
	morningOpen    = 9*60 + 30
	morningClose   = 11*60 + 30
	afternoonOpen  = 13 * 60
	afternoonClose = 15 * 60

	// FullSessionMinutes 为全天有效交易分钟数。
	FullSessionMinutes = 240
)

// ChinaStandardTime 在系统缺少 tzdata 时作为 Asia/Shanghai 的替代。
var ChinaStandardTime = loadShanghai()

func loadShanghai() *time.Location {
	if loc, err := time.LoadLocation("Asia/Shanghai"); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*3600)
}

// ElapsedTradingMinutes 返回当日截至 t（交易所本地时间）已交易的分钟数，剔除午休。
func ElapsedTradingMinutes(t time.Time) int {
	m := t.Hour()*60 + t.Minute()
	switch {
	case m < morningOpen:
		return 0
	case m <= morningClose:
		return m - morningOpen
	case m < afternoonOpen:
		return morningClose - morningOpen
	case m <= afternoonClose:
		return (morningClose - morningOpen) + (m - afternoonOpen)
	default:
		return FullSessionMinutes
	}
}

// BeforeClose 判断 t 是否早于当日 15:00 收盘。
func BeforeClose(t time.Time) bool {
	return t.Hour()*60+t.Minute() < afternoonClose
}

// IsTradingHours 判断 t 是否处于 09:30–15:00 的交易时间窗口（含午休）。
func IsTradingHours(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return m >= morningOpen && m <= afternoonClose
}
