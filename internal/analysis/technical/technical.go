// Package technical 把日线序列转换为有界评分、周线趋势与风控信号。
package technical

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"magpie/internal/analysis/indicator"
	"magpie/internal/logger"
	"magpie/internal/market"
)

// MinBars 是计算技术面读数所需的最少日线数量。
const MinBars = 30

// ErrInsufficientData 表示序列过短或关键列缺失。
var ErrInsufficientData = errors.New("insufficient data")

// RiskSignal 是技术面风控结论，按严重程度 PASS < WARN < VETO。
type RiskSignal string

const (
	RiskPass RiskSignal = "PASS"
	RiskWarn RiskSignal = "WARN"
	RiskVeto RiskSignal = "VETO"
)

// Level 返回风控等级：VETO=3、WARN=1、PASS=0。
func (r RiskSignal) Level() int {
	switch r {
	case RiskVeto:
		return 3
	case RiskWarn:
		return 1
	default:
		return 0
	}
}

// Projection 记录盘中量能投影的审计信息。
type Projection struct {
	Applied         bool    `json:"applied"`
	ElapsedMinutes  int     `json:"elapsed_minutes"`
	Multiplier      float64 `json:"multiplier"`
	OriginalVolume  float64 `json:"original_volume"`
	ProjectedVolume float64 `json:"projected_volume"`
}

// Reading 是一次技术面分析的不可变结果。
type Reading struct {
	RSI         float64             `json:"rsi"`
	MACD        indicator.MACDValue `json:"macd"`
	PercentB    float64             `json:"bollinger_pct_b"`
	VolumeRatio float64             `json:"vol_ratio"`
	OBVSlope    float64             `json:"obv_slope"`
	WeeklyTrend string              `json:"trend_weekly"`
	Price       float64             `json:"price"`
	Score       int                 `json:"quant_score"`
	Risk        RiskSignal          `json:"risk_signal"`
	RiskReason  string              `json:"risk_reason"`
	Projection  Projection          `json:"projection"`
	AsOf        time.Time           `json:"as_of"`
	// Degraded 为 true 表示读数来自 SafeDefault。
	Degraded bool `json:"degraded,omitempty"`
}

// SafeDefault 返回数据不足时的保守读数：0 分并一票否决。
func SafeDefault(detail string) Reading {
	reason := ErrInsufficientData.Error()
	if detail != "" {
		reason += ": " + detail
	}
	return Reading{
		RSI:         50,
		MACD:        indicator.MACDValue{Trend: indicator.MACDUnknown},
		PercentB:    0.5,
		VolumeRatio: 1.0,
		WeeklyTrend: indicator.TrendUnknown,
		Score:       0,
		Risk:        RiskVeto,
		RiskReason:  reason,
		Degraded:    true,
	}
}

// Analyzer 持有交易所时区与时钟，便于测试注入。
type Analyzer struct {
	Location *time.Location
	nowFn    func() time.Time
}

func NewAnalyzer(loc *time.Location) *Analyzer {
	if loc == nil {
		loc = market.ChinaStandardTime
	}
	return &Analyzer{Location: loc, nowFn: time.Now}
}

// Analyze 使用当前时钟作为盘中投影的兜底参考时间。
func (a *Analyzer) Analyze(bars []market.PriceBar) Reading {
	return Analyze(bars, a.nowFn().In(a.Location))
}

// Analyze 计算技术面读数；任何校验失败都返回 SafeDefault 而不是错误。
func Analyze(bars []market.PriceBar, now time.Time) Reading {
	series, err := Prepare(bars)
	if err != nil {
		logger.Warnf("[technical] %v", err)
		return SafeDefault(detailOf(err))
	}
	loc := now.Location()
	last := len(series) - 1

	proj := ProjectVolume(series[last], now, loc)
	if proj.Applied {
		series[last].Volume = proj.ProjectedVolume
		logger.Infof("[technical] 量能投影: 交易%dmin | 乘数x%.2f | Vol %d -> %d",
			proj.ElapsedMinutes, proj.Multiplier, int64(proj.OriginalVolume), int64(proj.ProjectedVolume))
	}

	dates := make([]time.Time, len(series))
	closes := make([]float64, len(series))
	volumes := make([]float64, len(series))
	for i, b := range series {
		dates[i] = b.Date
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	rsi, err := indicator.RSI(closes, indicator.DefaultRSIPeriod)
	if err != nil {
		return SafeDefault(err.Error())
	}
	rsi = indicator.Round(rsi, 2)
	macd := indicator.MACD(closes)
	pctB, _ := indicator.BollingerPercentB(closes, indicator.BollingerPeriod, indicator.BollingerDeviation)
	vr := indicator.VolumeRatio(volumes, indicator.VolumeRatioWindow)
	obv := indicator.OBVSlope(closes, volumes, indicator.OBVWindow)
	weekly := indicator.WeeklyTrend(dates, closes)

	risk, reason := AssessRisk(weekly, vr, rsi)
	return Reading{
		RSI: rsi,
		MACD: indicator.MACDValue{
			Line:   indicator.Round(macd.Line, 3),
			Signal: indicator.Round(macd.Signal, 3),
			Hist:   indicator.Round(macd.Hist, 3),
			Trend:  macd.Trend,
		},
		PercentB:    indicator.Round(pctB, 2),
		VolumeRatio: indicator.Round(vr, 2),
		OBVSlope:    indicator.Round(obv, 2),
		WeeklyTrend: weekly,
		Price:       closes[last],
		Score:       Score(rsi, macd.Hist, weekly, vr, obv),
		Risk:        risk,
		RiskReason:  reason,
		Projection:  proj,
		AsOf:        series[last].Date,
	}
}

// Score 按固定加减分规则合成 0–100 的量化评分。
func Score(rsi, hist float64, weekly string, volumeRatio, obvSlope float64) int {
	score := 50
	if rsi < 30 {
		score += 15
	}
	if rsi > 70 {
		score -= 10
	}
	if hist > 0 {
		score += 10
	}
	if weekly == indicator.TrendUp {
		score += 20
	}
	if volumeRatio > 1.2 {
		score += 5
	}
	if volumeRatio < 0.6 {
		score -= 15
	}
	if obvSlope > 0 {
		score += 10
	}
	return max(0, min(100, score))
}

// AssessRisk 依次评估各条风控规则，信号只升级不降级。
func AssessRisk(weekly string, volumeRatio, rsi float64) (RiskSignal, string) {
	signal, reason := RiskPass, "technicals normal"
	upgrade := func(next RiskSignal, why string) {
		if next.Level() > signal.Level() {
			signal, reason = next, why
		}
	}
	if weekly == indicator.TrendDown {
		upgrade(RiskWarn, "weekly downtrend")
	}
	if volumeRatio < 0.6 {
		upgrade(RiskVeto, fmt.Sprintf("liquidity drought (VR %.2f<0.6)", volumeRatio))
	}
	if rsi > 85 {
		upgrade(RiskVeto, fmt.Sprintf("extreme overbought (RSI %.2f)", rsi))
	}
	return signal, reason
}

// ProjectVolume 在最新一根为当日未收盘 K 线时推算全天成交量。
// 参考时间优先取抓取时间，其次取 now。
func ProjectVolume(bar market.PriceBar, now time.Time, loc *time.Location) Projection {
	if loc == nil {
		loc = market.ChinaStandardTime
	}
	ref := now
	if !bar.FetchedAt.IsZero() {
		ref = bar.FetchedAt
	}
	ref = ref.In(loc)
	by, bm, bd := bar.Date.In(loc).Date()
	ry, rm, rd := ref.Date()
	if by != ry || bm != rm || bd != rd || !market.BeforeClose(ref) {
		return Projection{}
	}
	mins := market.ElapsedTradingMinutes(ref)
	if mins <= 15 {
		logger.Debugf("[technical] 开盘不足15分钟，跳过量能投影")
		return Projection{ElapsedMinutes: mins}
	}
	mult := float64(market.FullSessionMinutes) / float64(mins)
	if mins < 120 {
		mult *= 0.9
	} else {
		mult *= 1.05
	}
	return Projection{
		Applied:         true,
		ElapsedMinutes:  mins,
		Multiplier:      mult,
		OriginalVolume:  bar.Volume,
		ProjectedVolume: math.Trunc(bar.Volume * mult),
	}
}

// Prepare 排序去重、用成交额代替缺失的成交量，并前后填补缺口。
func Prepare(bars []market.PriceBar) ([]market.PriceBar, error) {
	series := market.Normalize(bars)
	if len(series) < MinBars {
		return nil, fmt.Errorf("%w: need %d bars, have %d", ErrInsufficientData, MinBars, len(series))
	}
	if !anyPositive(series, func(b market.PriceBar) float64 { return b.Volume }) &&
		anyPresent(series, func(b market.PriceBar) float64 { return b.Amount }) {
		for i := range series {
			series[i].Volume = series[i].Amount
		}
	}
	columns := []struct {
		name string
		ref  func(*market.PriceBar) *float64
	}{
		{"close", func(b *market.PriceBar) *float64 { return &b.Close }},
		{"open", func(b *market.PriceBar) *float64 { return &b.Open }},
		{"high", func(b *market.PriceBar) *float64 { return &b.High }},
		{"low", func(b *market.PriceBar) *float64 { return &b.Low }},
		{"volume", func(b *market.PriceBar) *float64 { return &b.Volume }},
	}
	for _, col := range columns {
		if !fillGaps(series, col.ref) {
			return nil, fmt.Errorf("%w: missing %s column", ErrInsufficientData, col.name)
		}
	}
	return series, nil
}

// fillGaps 先前向再后向填补；整列缺失时返回 false。
func fillGaps(series []market.PriceBar, ref func(*market.PriceBar) *float64) bool {
	first := -1
	for i := range series {
		v := ref(&series[i])
		if !market.Missing(*v) {
			if first < 0 {
				first = i
			}
			continue
		}
		if first >= 0 {
			*v = *ref(&series[i-1])
		}
	}
	if first < 0 {
		return false
	}
	for i := first - 1; i >= 0; i-- {
		*ref(&series[i]) = *ref(&series[i+1])
	}
	return true
}

func anyPositive(series []market.PriceBar, get func(market.PriceBar) float64) bool {
	for _, b := range series {
		if v := get(b); !market.Missing(v) && v > 0 {
			return true
		}
	}
	return false
}

func anyPresent(series []market.PriceBar, get func(market.PriceBar) float64) bool {
	for _, b := range series {
		if !market.Missing(get(b)) {
			return true
		}
	}
	return false
}

func detailOf(err error) string {
	return strings.TrimPrefix(err.Error(), ErrInsufficientData.Error()+": ")
}
