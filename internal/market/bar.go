package market

import (
	"context"
	"math"
	"sort"
	"time"
)

// PriceBar 是一根日线。缺失字段用 NaN 表示，而不是 0：
// 成交量为 0 是合法的停牌数据，缺列则需要由 Amount 代替。
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	// Amount 为成交额，部分数据源只给成交额不给成交量。
	Amount float64 `json:"amount"`
	// FetchedAt 为抓取时间；盘中抓取的最后一根 K 线据此做量能投影。
	FetchedAt time.Time `json:"fetched_at,omitempty"`
}

// Source 提供单个标的的日线历史（按日期升序）。
type Source interface {
	History(ctx context.Context, code string) ([]PriceBar, error)
}

// SourceFunc 让普通函数满足 Source。
type SourceFunc func(ctx context.Context, code string) ([]PriceBar, error)

func (f SourceFunc) History(ctx context.Context, code string) ([]PriceBar, error) {
	return f(ctx, code)
}

// Missing 判断一个字段值是否应视为缺口。
func Missing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v < 0
}

// Normalize 按日期排序并去重（同一日期保留最后出现的一根）。
func Normalize(bars []PriceBar) []PriceBar {
	if len(bars) == 0 {
		return nil
	}
	out := make([]PriceBar, len(bars))
	copy(out, bars)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	dedup := out[:0]
	for _, b := range out {
		if n := len(dedup); n > 0 && sameDay(dedup[n-1].Date, b.Date) {
			dedup[n-1] = b
			continue
		}
		dedup = append(dedup, b)
	}
	return dedup
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
