// Package valuation 用指数价格分位近似估值分位，输出定投调节系数。
package valuation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"magpie/internal/gateway/eastmoney"
	"magpie/internal/logger"
	"magpie/internal/pkg/retry"

	"golang.org/x/sync/singleflight"
)

const (
	// Window 约为 5 年交易日。
	Window = 1250
	// MinHistory 少于一年的数据不做估值。
	MinHistory = 250
)

// Result 是估值查询结果，任何失败都退化为中性 1.0。
type Result struct {
	Multiplier float64 `json:"multiplier"`
	Descriptor string  `json:"descriptor"`
	Percentile float64 `json:"percentile"`
	// Known 为 false 表示结果来自中性兜底。
	Known bool `json:"known"`
}

// Neutral 返回中性估值。
func Neutral(detail string) Result {
	desc := "neutral"
	if detail != "" {
		desc += ": " + detail
	}
	return Result{Multiplier: 1.0, Descriptor: desc, Percentile: 0.5}
}

// IndexHistory 提供指数日收盘价序列。
type IndexHistory interface {
	IndexCloses(ctx context.Context, code string) ([]float64, error)
}

// Options 控制重试与缓存。
type Options struct {
	Attempts   int
	RetryDelay time.Duration
	CacheTTL   time.Duration
	// FetchTimeout 限制一次合并拉取（含重试）的总时长，与单个调用方的截止时间无关。
	FetchTimeout time.Duration
}

const defaultFetchTimeout = 2 * time.Minute

// Service 按指数名查询估值。同一指数在缓存有效期内只请求一次。
type Service struct {
	history IndexHistory
	indices map[string]string
	opts    Options
	nowFn   func() time.Time

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]cachedSeries
}

type cachedSeries struct {
	closes  []float64
	fetched time.Time
}

func NewService(history IndexHistory, indices map[string]string, opts Options) *Service {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	idx := make(map[string]string, len(indices))
	for k, v := range indices {
		idx[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return &Service{
		history: history,
		indices: idx,
		opts:    opts,
		nowFn:   time.Now,
		cache:   make(map[string]cachedSeries),
	}
}

// Lookup 返回 (系数, 描述)。未映射的指数、港美股与数据不足都返回中性值。
func (s *Service) Lookup(ctx context.Context, indexName, strategy string) Result {
	indexName = strings.TrimSpace(indexName)
	code, ok := s.indices[indexName]
	if indexName == "" || !ok {
		return Neutral("no mapped index")
	}
	closes, err := s.closes(ctx, code)
	if err != nil {
		if errors.Is(err, eastmoney.ErrUnsupportedMarket) {
			return Neutral("market not covered")
		}
		logger.Warnf("[valuation] %s(%s) 估值数据获取受阻: %v", indexName, code, err)
		return Neutral("upstream unavailable")
	}
	if len(closes) < MinHistory {
		return Neutral("data limited")
	}
	p := Percentile(closes)
	res := Assess(strategy, p)
	logger.Debugf("[valuation] %s %s 分位 %.2f -> x%.1f", indexName, strategy, p, res.Multiplier)
	return res
}

func (s *Service) closes(ctx context.Context, code string) ([]float64, error) {
	s.mu.Lock()
	if c, ok := s.cache[code]; ok && s.nowFn().Sub(c.fetched) < s.opts.CacheTTL {
		s.mu.Unlock()
		return c.closes, nil
	}
	s.mu.Unlock()

	// 合并拉取使用独立的 ctx，调用方超时只影响自己
	ch := s.group.DoChan(code, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.FetchTimeout)
		defer cancel()
		closes, err := retry.Do(fctx, "valuation "+code, s.opts.Attempts, s.opts.RetryDelay,
			func(ctx context.Context) ([]float64, error) {
				out, err := s.history.IndexCloses(ctx, code)
				if errors.Is(err, eastmoney.ErrUnsupportedMarket) {
					return nil, retry.Permanent(err)
				}
				return out, err
			})
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[code] = cachedSeries{closes: closes, fetched: s.nowFn()}
		s.mu.Unlock()
		return closes, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]float64), nil
	}
}

// Percentile 返回最新收盘在最近 Window 个收盘价区间中的位置；区间为零时返回 0.5。
func Percentile(closes []float64) float64 {
	if len(closes) == 0 {
		return 0.5
	}
	if len(closes) > Window {
		closes = closes[len(closes)-Window:]
	}
	lo, hi := closes[0], closes[0]
	for _, v := range closes {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi == lo {
		return 0.5
	}
	return (closes[len(closes)-1] - lo) / (hi - lo)
}

// Assess 按策略类别把分位映射为系数。
func Assess(strategy string, p float64) Result {
	pct := fmt.Sprintf("%d%%", int(p*100))
	res := func(mult float64, label string) Result {
		return Result{Multiplier: mult, Descriptor: fmt.Sprintf("%s(分位%s)", label, pct), Percentile: p, Known: true}
	}
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "core":
		switch {
		case p < 0.20:
			return res(1.5, "极度低估")
		case p < 0.40:
			return res(1.2, "低估")
		case p > 0.90:
			return res(0.0, "极度高估")
		case p > 0.80:
			return res(0.5, "高估")
		default:
			return res(1.0, "估值适中")
		}
	case "satellite":
		if p > 0.85 {
			return res(0.0, "泡沫预警")
		}
		return res(1.0, "估值允许")
	case "dividend":
		switch {
		case p > 0.70:
			return res(0.0, "红利高估")
		case p < 0.30:
			return res(1.5, "红利黄金坑")
		default:
			return res(1.0, "估值适中")
		}
	default:
		r := Neutral("strategy undefined")
		r.Percentile = p
		return r
	}
}
