package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"magpie/internal/advisory"
	"magpie/internal/analysis/technical"
	"magpie/internal/config"
	cfgloader "magpie/internal/config/loader"
	"magpie/internal/engine"
	"magpie/internal/gateway/eastmoney"
	"magpie/internal/gateway/notifier"
	"magpie/internal/gateway/provider"
	"magpie/internal/ledger"
	"magpie/internal/logger"
	"magpie/internal/market"
	"magpie/internal/metrics"
	"magpie/internal/pkg/circuit"
	"magpie/internal/report"
	"magpie/internal/store/journal"
	apihttp "magpie/internal/transport/http/api"
	"magpie/internal/valuation"
)

// AppBuilder 按配置装配各组件；fn 字段便于测试替换外部依赖。
type AppBuilder struct {
	cfg *config.Config

	ledgerFn    func(config.LedgerConfig, *time.Location) (*ledger.Ledger, error)
	journalFn   func(config.JournalConfig) (*journal.Journal, error)
	catalogFn   func(*config.Config, bool) (engine.FundCatalog, error)
	sourceFn    func(config.DataConfig, *time.Location) market.Source
	valuationFn func(config.ValuationConfig) engine.ValuationLookup
	advisoryFn  func(config.AdvisoryConfig) (advisory.Advisor, advisory.Reviewer, error)
	notifierFn  func(config.NotifyConfig) notifier.TextNotifier

	watchFunds bool
	terminal   bool
}

type AppBuilderOption func(*AppBuilder)

// WithFundWatch 开启标的清单热更新（serve 模式）。
func WithFundWatch(enabled bool) AppBuilderOption {
	return func(b *AppBuilder) { b.watchFunds = enabled }
}

// WithTerminalTable 在每轮结束后向 stdout 输出摘要表。
func WithTerminalTable(enabled bool) AppBuilderOption {
	return func(b *AppBuilder) { b.terminal = enabled }
}

// WithSource 替换行情源。
func WithSource(src market.Source) AppBuilderOption {
	return func(b *AppBuilder) {
		if src != nil {
			b.sourceFn = func(config.DataConfig, *time.Location) market.Source { return src }
		}
	}
}

// WithAdvisor 替换投委会实现。
func WithAdvisor(adv advisory.Advisor, reviewer advisory.Reviewer) AppBuilderOption {
	return func(b *AppBuilder) {
		if adv != nil {
			b.advisoryFn = func(config.AdvisoryConfig) (advisory.Advisor, advisory.Reviewer, error) {
				return adv, reviewer, nil
			}
		}
	}
}

// WithNotifier 替换推送通道。
func WithNotifier(n notifier.TextNotifier) AppBuilderOption {
	return func(b *AppBuilder) {
		b.notifierFn = func(config.NotifyConfig) notifier.TextNotifier { return n }
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:         cfg,
		ledgerFn:    buildLedger,
		journalFn:   buildJournal,
		catalogFn:   buildFundCatalog,
		sourceFn:    buildSource,
		valuationFn: buildValuation,
		advisoryFn:  buildAdvisory,
		notifierFn:  buildNotifier,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

type appBuilderDeps interface {
	Build(context.Context) (*App, error)
}

func provideAppFromBuilder(b appBuilderDeps, ctx context.Context) (*App, error) {
	return b.Build(ctx)
}

func provideAppBuilder(cfg *config.Config, opts []AppBuilderOption) *AppBuilder {
	return NewAppBuilder(cfg, opts...)
}

func (b *AppBuilder) Build(ctx context.Context) (_ *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	loc := cfg.Location()
	logger.SetLevel(cfg.App.LogLevel)

	a := &App{cfg: cfg, loc: loc}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	led, err := b.ledgerFn(cfg.Ledger, loc)
	if err != nil {
		return nil, err
	}
	a.ledger = led
	a.closers = append(a.closers, led.Close)
	logger.Infof("✓ 账本已加载（backend=%s，持仓=%d）", cfg.Ledger.Backend, len(led.Codes()))

	var runs engine.Journal
	var runReader apihttp.RunReader
	if cfg.Journal.Enabled {
		j, err := b.journalFn(cfg.Journal)
		if err != nil {
			return nil, err
		}
		a.journal = j
		a.closers = append(a.closers, j.Close)
		runs, runReader = j, j
	}

	catalog, err := b.catalogFn(cfg, b.watchFunds)
	if err != nil {
		return nil, err
	}
	a.catalog = catalog

	adv, reviewer, err := b.advisoryFn(cfg.Advisory)
	if err != nil {
		return nil, err
	}

	rep := report.New(cfg.Report, reviewer)
	if b.terminal {
		rep.Terminal = os.Stdout
	}

	a.metrics = metrics.New()
	runner, err := engine.NewRunner(engine.Env{
		Settings:  engine.SettingsFromConfig(cfg.Engine),
		Funds:     catalog,
		Source:    b.sourceFn(cfg.Data, loc),
		News:      market.NewNewsCache(cfg.Data.NewsDir, loc),
		Analyzer:  technical.NewAnalyzer(loc),
		Valuation: b.valuationFn(cfg.Valuation),
		Advisor:   adv,
		Ledger:    led,
		Journal:   runs,
		Reporter:  rep,
		Notifier:  b.notifierFn(cfg.Notify),
		Metrics:   a.metrics,
		Title:     cfg.Report.Title,
	})
	if err != nil {
		return nil, err
	}
	a.runner = runner

	srv, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Positions: led,
		Runs:      runReader,
		Summaries: runner,
		Metrics:   a.metrics.Handler(),
	})
	if err != nil {
		return nil, err
	}
	a.http = srv
	a.Summary = buildStartupSummary(cfg, catalog.Funds())
	return a, nil
}

// OpenLedger 只打开账本，供命令行维护子命令使用。
func OpenLedger(cfg *config.Config) (*ledger.Ledger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	return buildLedger(cfg.Ledger, cfg.Location())
}

func buildLedger(cfg config.LedgerConfig, loc *time.Location) (*ledger.Ledger, error) {
	var (
		store ledger.Store
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "sqlite":
		store, err = ledger.NewSQLiteStore(cfg.Path)
	default:
		store, err = ledger.NewJSONStore(cfg.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}
	led, err := ledger.Open(store, loc)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return led, nil
}

func buildJournal(cfg config.JournalConfig) (*journal.Journal, error) {
	j, err := journal.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	logger.Infof("✓ 决策日志: %s", cfg.Path)
	return j, nil
}

func buildFundCatalog(cfg *config.Config, watch bool) (engine.FundCatalog, error) {
	if strings.TrimSpace(cfg.FundsPath) == "" {
		return cfgloader.Static(cfg.Funds), nil
	}
	l, err := cfgloader.NewFundLoader(cfg.FundsPath, watch)
	if err != nil {
		return nil, err
	}
	l.Subscribe(func(s cfgloader.FundSnapshot) {
		logger.Infof("标的清单已更新 (v%d，%d 个)，下一轮生效", s.Version, len(s.Funds))
	})
	return l, nil
}

func buildSource(cfg config.DataConfig, loc *time.Location) market.Source {
	return market.NewCSVSource(cfg.CacheDir, loc)
}

func buildValuation(cfg config.ValuationConfig) engine.ValuationLookup {
	if !cfg.Enabled {
		return nil
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	delay := time.Duration(cfg.RetryDelaySeconds) * time.Second
	client := eastmoney.NewClient(cfg.BaseURL, timeout)
	return valuation.NewService(client, cfg.Indices, valuation.Options{
		Attempts:     cfg.Attempts,
		RetryDelay:   delay,
		FetchTimeout: time.Duration(max(cfg.Attempts, 1)) * (timeout + delay),
	})
}

func buildAdvisory(cfg config.AdvisoryConfig) (advisory.Advisor, advisory.Reviewer, error) {
	if !cfg.Enabled {
		logger.Infof("投委会未启用，结论固定为 PASS")
		return advisory.Disabled{}, nil, nil
	}
	model := provider.NewOpenAIChatClient(cfg.APIURL, cfg.APIKey, cfg.Model, time.Duration(cfg.TimeoutSeconds)*time.Second)
	breaker := circuit.NewCircuitBreaker("advisory", cfg.BreakerThreshold, time.Duration(cfg.BreakerCooldownSeconds)*time.Second)
	committee, err := advisory.NewCommittee(model, breaker, advisory.Options{
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Attempts:    cfg.Attempts,
		RetryDelay:  time.Duration(cfg.RetryDelaySeconds) * time.Second,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("✓ 投委会模型: %s", cfg.Model)
	return committee, committee, nil
}

func buildNotifier(cfg config.NotifyConfig) notifier.TextNotifier {
	if !cfg.Telegram.Enabled {
		return nil
	}
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}
