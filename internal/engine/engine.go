// Package engine 执行一轮完整的决策周期：行情 → 技术面 → 估值/投委会 → 决策 → 账本。
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"magpie/internal/advisory"
	"magpie/internal/analysis/technical"
	"magpie/internal/config"
	"magpie/internal/decision"
	"magpie/internal/gateway/notifier"
	"magpie/internal/ledger"
	"magpie/internal/logger"
	"magpie/internal/market"
	"magpie/internal/metrics"
	"magpie/internal/store/journal"
	"magpie/internal/valuation"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrCycleRunning 表示已有一轮决策在执行。
var ErrCycleRunning = errors.New("engine: cycle already running")

// FundCatalog 提供本轮要处理的标的清单。
type FundCatalog interface {
	Funds() []config.Fund
}

// Analyzer 把日线转换为技术面读数。
type Analyzer interface {
	Analyze(bars []market.PriceBar) technical.Reading
}

// ValuationLookup 查询指数估值；失败时返回中性结果。
type ValuationLookup interface {
	Lookup(ctx context.Context, indexName, strategy string) valuation.Result
}

// NewsSource 提供当日宏观新闻上下文；无新闻时返回空串。
type NewsSource interface {
	Context(ctx context.Context, day time.Time) (string, error)
}

// Journal 持久化每轮结果。
type Journal interface {
	Record(ctx context.Context, run journal.Run, entries []journal.Entry) error
}

// Reporter 消费排序后的本轮结果。
type Reporter interface {
	Publish(ctx context.Context, summary Summary) error
}

// Settings 是单轮决策的资金与并发参数。
type Settings struct {
	Workers       int
	BaseAmount    float64
	MaxDaily      float64
	LookupTimeout time.Duration
	MinHoldDays   int
}

// SettingsFromConfig 从引擎配置构造 Settings。
func SettingsFromConfig(cfg config.EngineConfig) Settings {
	return Settings{
		Workers:       cfg.Workers,
		BaseAmount:    cfg.BaseInvestAmount,
		MaxDaily:      cfg.MaxDailyInvest,
		LookupTimeout: time.Duration(cfg.LookupTimeoutSeconds) * time.Second,
		MinHoldDays:   cfg.MinHoldDays,
	}
}

// Env 是一轮决策的显式执行上下文。Ledger 是唯一的共享可变状态。
// Valuation/News/Journal/Reporter/Notifier/Metrics 可以为 nil。
type Env struct {
	Settings  Settings
	Funds     FundCatalog
	Source    market.Source
	Analyzer  Analyzer
	Valuation ValuationLookup
	News      NewsSource
	Advisor   advisory.Advisor
	Ledger    *ledger.Ledger
	Journal   Journal
	Reporter  Reporter
	Notifier  notifier.TextNotifier
	Metrics   *metrics.Metrics
	Title     string
}

// Runner 串行执行决策周期，并缓存最近一轮结果。
type Runner struct {
	env   Env
	nowFn func() time.Time

	running sync.Mutex

	mu   sync.RWMutex
	last *Summary
}

func NewRunner(env Env) (*Runner, error) {
	switch {
	case env.Ledger == nil:
		return nil, fmt.Errorf("engine: ledger is required")
	case env.Funds == nil:
		return nil, fmt.Errorf("engine: fund catalog is required")
	case env.Source == nil:
		return nil, fmt.Errorf("engine: price source is required")
	case env.Analyzer == nil:
		return nil, fmt.Errorf("engine: analyzer is required")
	}
	if env.Advisor == nil {
		env.Advisor = advisory.Disabled{}
	}
	if env.Settings.Workers <= 0 {
		env.Settings.Workers = 5
	}
	if env.Settings.LookupTimeout <= 0 {
		env.Settings.LookupTimeout = 2 * time.Minute
	}
	return &Runner{env: env, nowFn: time.Now}, nil
}

// Last 返回最近一轮的汇总。
func (r *Runner) Last() (Summary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Summary{}, false
	}
	return *r.last, true
}

// RunCycle 执行一轮决策。单个标的的失败不会中断本轮；
// 只有在已有周期运行时返回错误。
func (r *Runner) RunCycle(ctx context.Context) (Summary, error) {
	if !r.running.TryLock() {
		return Summary{}, ErrCycleRunning
	}
	defer r.running.Unlock()

	summary := Summary{RunID: uuid.NewString(), StartedAt: r.nowFn()}
	funds := r.env.Funds.Funds()
	logger.Infof("[engine] 决策周期 %s 开始: %d 个标的", summary.RunID, len(funds))

	// 先确认上一轮交易，持有天数 +1
	if err := r.env.Ledger.AdvanceDay(); err != nil {
		logger.Errorf("[engine] 推进持有天数失败: %v", err)
	}
	news := r.loadNews(ctx, summary.StartedAt)
	summary.News = news

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.env.Settings.Workers)
	for _, fund := range funds {
		fund := fund
		g.Go(func() error {
			res, err := r.processSafe(ctx, fund, news)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				var ie *InstrumentError
				if !errors.As(err, &ie) {
					ie = &InstrumentError{Code: fund.Code, Stage: StageData, Err: err}
				}
				logger.Errorf("[engine] 标的 %s 处理失败: %v", fund.Name, ie)
				r.env.Metrics.ObserveFailure(ie.Stage)
				summary.Failures = append(summary.Failures, ie)
				return nil
			}
			summary.Results = append(summary.Results, res)
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(summary.Results, func(i, j int) bool {
		a, b := summary.Results[i], summary.Results[j]
		if a.Instruction.TacticalScore != b.Instruction.TacticalScore {
			return a.Instruction.TacticalScore > b.Instruction.TacticalScore
		}
		return a.Fund.Code < b.Fund.Code
	})
	summary.FinishedAt = r.nowFn()

	for _, line := range summary.AuditLines() {
		logger.Infof("[cio] %s", line)
	}
	r.publish(ctx, summary)

	r.mu.Lock()
	r.last = &summary
	r.mu.Unlock()
	logger.Infof("[engine] 决策周期 %s 完成: %d 成功 / %d 失败，耗时 %s",
		summary.RunID, len(summary.Results), len(summary.Failures),
		summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	return summary, nil
}

// loadNews 每轮只读取一次新闻缓存，读取失败按无新闻处理。
func (r *Runner) loadNews(ctx context.Context, day time.Time) string {
	if r.env.News == nil {
		return ""
	}
	news, err := r.env.News.Context(ctx, day)
	if err != nil {
		logger.Warnf("[engine] 读取新闻缓存失败: %v", err)
		return ""
	}
	return news
}

func (r *Runner) processSafe(ctx context.Context, fund config.Fund, news string) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Errorf("[engine] 标的 %s panic: %v\n%s", fund.Code, p, debug.Stack())
			err = &InstrumentError{Code: fund.Code, Stage: StagePanic, Err: fmt.Errorf("%v", p)}
		}
	}()
	return r.process(ctx, fund, news)
}

func (r *Runner) process(ctx context.Context, fund config.Fund, news string) (Result, error) {
	bars, err := r.env.Source.History(ctx, fund.Code)
	switch {
	case errors.Is(err, market.ErrNoData):
		logger.Warnf("[engine] %s 行情缺失或格式错误，使用安全默认读数: %v", fund.Name, err)
		bars = nil
	case err != nil:
		return Result{}, &InstrumentError{Code: fund.Code, Stage: StageData, Err: err}
	}
	reading := r.env.Analyzer.Analyze(bars)

	val, adv := r.lookups(ctx, fund, reading, news)
	r.env.Metrics.ObserveAdvisory(adv.Source)

	unlock := r.env.Ledger.Lock(fund.Code)
	defer unlock()
	pos := r.env.Ledger.Position(fund.Code)
	ins := decision.Decide(decision.Input{
		Reading:             reading,
		AdvisoryAdjustment:  adv.Adjustment,
		AdvisoryVerdict:     adv.Decision,
		ValuationMultiplier: val.Multiplier,
		ValuationDescriptor: val.Descriptor,
		BaseAmount:          r.env.Settings.BaseAmount,
		MaxDailyAmount:      r.env.Settings.MaxDaily,
		Holding:             pos.Holding(),
		Strategy:            decision.Strategy(fund.StrategyType),
		MinHoldDays:         r.env.Settings.MinHoldDays,
	})
	if err := r.env.Ledger.Apply(fund.Code, fund.Name, reading.Price, ins); err != nil {
		return Result{}, &InstrumentError{Code: fund.Code, Stage: StageLedger, Err: err}
	}
	r.env.Metrics.ObserveDecision(fund.Code, string(ins.Action), ins.TacticalScore)

	return Result{
		Fund:        fund,
		Reading:     reading,
		Valuation:   val,
		Advisory:    adv,
		Instruction: ins,
		Position:    r.env.Ledger.Position(fund.Code),
		AuditLine:   auditLine(fund.Name, ins, adv.Adjustment),
	}, nil
}

// lookups 并发查询估值与投委会，各自独立超时。
func (r *Runner) lookups(ctx context.Context, fund config.Fund, reading technical.Reading, news string) (valuation.Result, advisory.Result) {
	var (
		val valuation.Result
		adv advisory.Result
		g   errgroup.Group
	)
	timeout := r.env.Settings.LookupTimeout
	g.Go(func() error {
		if r.env.Valuation == nil || fund.IndexName == "" {
			val = valuation.Neutral("no index")
			return nil
		}
		lctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		val = r.env.Valuation.Lookup(lctx, fund.IndexName, fund.StrategyType)
		return nil
	})
	g.Go(func() error {
		actx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		adv = r.env.Advisor.Assess(actx, advisory.Request{
			Code:      fund.Code,
			Name:      fund.Name,
			Strategy:  fund.StrategyType,
			Reading:   reading,
			Valuation: indexContext(fund),
			News:      news,
		})
		return nil
	})
	_ = g.Wait()
	return val, adv
}

func indexContext(fund config.Fund) string {
	if fund.IndexName == "" {
		return ""
	}
	return "跟踪指数 " + fund.IndexName
}
