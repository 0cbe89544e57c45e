// Package indicator 提供无状态的技术指标计算，全部基于 go-talib。
package indicator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/markcheno/go-talib"
)

const (
	DefaultRSIPeriod   = 14
	MACDFast           = 12
	MACDSlow           = 26
	MACDSignal         = 9
	BollingerPeriod    = 20
	BollingerDeviation = 2.0
	OBVWindow          = 10
	// OBVScale 把 OBV 斜率缩放到便于阅读的量级。
	OBVScale          = 10000.0
	VolumeRatioWindow = 5
	WeeklyMAPeriod    = 5
)

// ErrShortSeries 表示输入序列不足以计算指标。
var ErrShortSeries = errors.New("series too short")

// MACD 柱状图形态标签。
const (
	MACDBullish          = "bullish-cross"
	MACDBearish          = "bearish-cross"
	MACDBullishWeakening = "bullish-cross-weakening"
	MACDBearishWeakening = "bearish-cross-weakening"
	MACDUnknown          = "unknown"
)

// 周线趋势。
const (
	TrendUp      = "UP"
	TrendDown    = "DOWN"
	TrendUnknown = "Unknown"
)

// MACDValue 是最新一根的 MACD 三元组与形态标签。
type MACDValue struct {
	Line   float64 `json:"line"`
	Signal float64 `json:"signal"`
	Hist   float64 `json:"hist"`
	Trend  string  `json:"trend"`
}

// RSI 返回最新 RSI；完全没有价格变动时按中性 50 处理。
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	if len(closes) <= period {
		return 0, fmt.Errorf("rsi(%d): %w (have %d)", period, ErrShortSeries, len(closes))
	}
	if flat(closes) {
		return 50, nil
	}
	v := lastValid(talib.Rsi(closes, period))
	return clamp(v, 0, 100), nil
}

// MACD 计算 12/26/9 MACD；有效柱状图少于两根时标签为 unknown。
func MACD(closes []float64) MACDValue {
	out := MACDValue{Trend: MACDUnknown}
	lookback := MACDSlow - 1 + MACDSignal - 1
	if len(closes) <= lookback {
		return out
	}
	line, signal, hist := talib.Macd(closes, MACDFast, MACDSlow, MACDSignal)
	n := len(hist)
	out.Line = sanitize(line[n-1])
	out.Signal = sanitize(signal[n-1])
	out.Hist = sanitize(hist[n-1])
	if n-2 < lookback {
		return out
	}
	out.Trend = MACDTrend(out.Hist, sanitize(hist[n-2]))
	return out
}

// MACDTrend 由当前与前一根柱状图推导形态；hist 为 0 时归为 bearish-cross。
func MACDTrend(hist, prev float64) string {
	switch {
	case hist > 0 && hist < prev:
		return MACDBullishWeakening
	case hist > 0:
		return MACDBullish
	case hist < 0 && hist > prev:
		return MACDBearishWeakening
	default:
		return MACDBearish
	}
}

// BollingerPercentB 返回最新收盘价在布林带中的相对位置；带宽为 0 时返回 0.5。
func BollingerPercentB(closes []float64, period int, dev float64) (float64, error) {
	if period <= 0 {
		period = BollingerPeriod
	}
	if dev <= 0 {
		dev = BollingerDeviation
	}
	if len(closes) < period {
		return 0.5, fmt.Errorf("bbands(%d): %w (have %d)", period, ErrShortSeries, len(closes))
	}
	upper, _, lower := talib.BBands(closes, period, dev, dev, talib.SMA)
	n := len(closes)
	width := upper[n-1] - lower[n-1]
	if almostZero(width) || math.IsNaN(width) {
		return 0.5, nil
	}
	return (closes[n-1] - lower[n-1]) / width, nil
}

// OBVSlope 返回最近 window 根 OBV 的平均变化量（已除以 OBVScale）。
func OBVSlope(closes, volumes []float64, window int) float64 {
	if window <= 0 {
		window = OBVWindow
	}
	n := len(closes)
	if n != len(volumes) || n < window {
		return 0
	}
	obv := talib.Obv(closes, volumes)
	return (obv[n-1] - obv[n-window]) / float64(window) / OBVScale
}

// VolumeRatio 返回最新成交量与最近 window 根均量之比；均量为 0 时返回 1。
func VolumeRatio(volumes []float64, window int) float64 {
	if window <= 0 {
		window = VolumeRatioWindow
	}
	n := len(volumes)
	if n < window {
		return 1.0
	}
	var sum float64
	for _, v := range volumes[n-window:] {
		sum += v
	}
	mean := sum / float64(window)
	if mean <= 0 {
		return 1.0
	}
	return volumes[n-1] / mean
}

// WeeklyTrend 把日线按自然周取周末收盘价，比较最新周收盘与周线 MA5。
// MA5 窗口内存在无交易周（NaN）时无法确认趋势，记为 DOWN。
func WeeklyTrend(dates []time.Time, closes []float64) string {
	weekly := WeeklyCloses(dates, closes)
	n := len(weekly)
	if n < WeeklyMAPeriod {
		return TrendUnknown
	}
	sum := 0.0
	for _, v := range weekly[n-WeeklyMAPeriod:] {
		sum += v
	}
	ma := sum / WeeklyMAPeriod
	if last := weekly[n-1]; !math.IsNaN(ma) && last > ma {
		return TrendUp
	}
	return TrendDown
}

// WeeklyCloses 返回从首周到末周每个自然周（周一至周日）最后一个有效收盘价。
// 整周无交易的周保留为 NaN。dates 需升序。
func WeeklyCloses(dates []time.Time, closes []float64) []float64 {
	if len(dates) != len(closes) || len(dates) == 0 {
		return nil
	}
	first := weekIndex(dates[0])
	var out []float64
	for i, d := range dates {
		idx := weekIndex(d) - first
		if idx < 0 {
			continue
		}
		for len(out) <= idx {
			out = append(out, math.NaN())
		}
		if !math.IsNaN(closes[i]) || math.IsNaN(out[idx]) {
			out[idx] = closes[i]
		}
	}
	return out
}

// weekIndex 以日历日计算周序号，周一为一周起点。
func weekIndex(d time.Time) int {
	y, m, day := d.Date()
	days := int(time.Date(y, m, day, 0, 0, 0, 0, time.UTC).Unix() / 86400)
	// 1970-01-01 是周四，平移 3 天让周一对齐到 0
	return (days + 3) / 7
}

func flat(series []float64) bool {
	for _, v := range series[1:] {
		if !almostZero(v - series[0]) {
			return false
		}
	}
	return true
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}

func almostZero(v float64) bool {
	return math.Abs(v) < 1e-12
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Round 按 digits 位小数四舍五入（远离零）。
func Round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
