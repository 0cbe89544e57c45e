package app

import (
	"fmt"
	"sort"
	"strings"

	"magpie/internal/config"
	"magpie/internal/logger"
)

type StartupSummary struct {
	Funds    []config.Fund
	Engine   EngineSummary
	Storage  StorageSummary
	Advisory AdvisorySummary
	Schedule config.ScheduleConfig
	HTTPAddr string
}

type EngineSummary struct {
	Workers     int
	BaseAmount  float64
	MaxDaily    float64
	MinHoldDays int
}

type StorageSummary struct {
	LedgerBackend string
	LedgerPath    string
	JournalPath   string
	NewsDir       string
	ReportDir     string
}

type AdvisorySummary struct {
	Enabled   bool
	Model     string
	Valuation bool
	Telegram  bool
}

func buildStartupSummary(cfg *config.Config, funds []config.Fund) *StartupSummary {
	s := &StartupSummary{
		Funds: funds,
		Engine: EngineSummary{
			Workers:     cfg.Engine.Workers,
			BaseAmount:  cfg.Engine.BaseInvestAmount,
			MaxDaily:    cfg.Engine.MaxDailyInvest,
			MinHoldDays: cfg.Engine.MinHoldDays,
		},
		Storage: StorageSummary{
			LedgerBackend: cfg.Ledger.Backend,
			LedgerPath:    cfg.Ledger.Path,
			NewsDir:       cfg.Data.NewsDir,
			ReportDir:     cfg.Report.Dir,
		},
		Advisory: AdvisorySummary{
			Enabled:   cfg.Advisory.Enabled,
			Model:     cfg.Advisory.Model,
			Valuation: cfg.Valuation.Enabled,
			Telegram:  cfg.Notify.Telegram.Enabled,
		},
		Schedule: cfg.Schedule,
		HTTPAddr: cfg.App.HTTPAddr,
	}
	if cfg.Journal.Enabled {
		s.Storage.JournalPath = cfg.Journal.Path
	}
	return s
}

// Print 逐行写入日志，使摘要同时进入运行日志文件。
func (s *StartupSummary) Print() {
	logger.InfoBlock(s.String())
}

func (s *StartupSummary) String() string {
	var b strings.Builder
	title := "启动配置摘要 (STARTUP SUMMARY)"
	b.WriteString(strings.Repeat("=", 80) + "\n")
	fmt.Fprintf(&b, "%*s\n", 40+len(title)/2, title)
	b.WriteString(strings.Repeat("=", 80) + "\n")

	b.WriteString("[资金参数 (ENGINE)]\n")
	fmt.Fprintf(&b, "  并发: %d\n", s.Engine.Workers)
	fmt.Fprintf(&b, "  基准定投: %.0f  单日上限: %.0f\n", s.Engine.BaseAmount, s.Engine.MaxDaily)
	fmt.Fprintf(&b, "  最短持有: %d 天\n\n", s.Engine.MinHoldDays)

	b.WriteString("[存储 (STORAGE)]\n")
	fmt.Fprintf(&b, "  账本: %s (%s)\n", s.Storage.LedgerPath, s.Storage.LedgerBackend)
	fmt.Fprintf(&b, "  决策日志: %s\n", orDash(s.Storage.JournalPath))
	fmt.Fprintf(&b, "  新闻缓存: %s\n", orDash(s.Storage.NewsDir))
	fmt.Fprintf(&b, "  报告目录: %s\n\n", s.Storage.ReportDir)

	b.WriteString("[外部服务 (UPSTREAMS)]\n")
	model := "(未启用)"
	if s.Advisory.Enabled {
		model = s.Advisory.Model
	}
	fmt.Fprintf(&b, "  投委会模型: %s\n", model)
	fmt.Fprintf(&b, "  指数估值: %s\n", onOff(s.Advisory.Valuation))
	fmt.Fprintf(&b, "  Telegram: %s\n", onOff(s.Advisory.Telegram))
	fmt.Fprintf(&b, "  定时: %s (立即运行=%v，跳过周末=%v)  HTTP: %s\n\n",
		s.Schedule.At, s.Schedule.RunImmediately, s.Schedule.SkipWeekends, orDash(s.HTTPAddr))

	fmt.Fprintf(&b, "[标的清单 (FUNDS) 共 %d 个]\n", len(s.Funds))
	if len(s.Funds) == 0 {
		b.WriteString("  (无配置)\n")
	}
	funds := append([]config.Fund(nil), s.Funds...)
	sort.SliceStable(funds, func(i, j int) bool { return funds[i].Code < funds[j].Code })
	for _, f := range funds {
		fmt.Fprintf(&b, "  > %s %s [%s] 指数: %s\n", f.Code, f.Name, orDash(f.StrategyType), orDash(f.IndexName))
	}
	b.WriteString(strings.Repeat("=", 80) + "\n")
	return b.String()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func onOff(v bool) string {
	if v {
		return "开启"
	}
	return "关闭"
}
