package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"magpie/internal/config"
	"magpie/internal/engine"
	"magpie/internal/ledger"
	"magpie/internal/logger"
	"magpie/internal/metrics"
	"magpie/internal/scheduler"
	"magpie/internal/store/journal"
	apihttp "magpie/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→单次运行或常驻调度。
type App struct {
	cfg     *config.Config
	loc     *time.Location
	runner  *engine.Runner
	ledger  *ledger.Ledger
	journal *journal.Journal
	catalog engine.FundCatalog
	metrics *metrics.Metrics
	http    *apihttp.Server
	Summary *StartupSummary

	closers []func() error
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *config.Config, opts ...AppBuilderOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg, opts)
}

// RunOnce 执行一轮决策并返回汇总。
func (a *App) RunOnce(ctx context.Context) (engine.Summary, error) {
	if a == nil || a.runner == nil {
		return engine.Summary{}, fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	return a.runner.RunCycle(ctx)
}

// Serve 启动 HTTP 查询接口与每日调度，直到 ctx 结束。
func (a *App) Serve(ctx context.Context) error {
	if a == nil || a.runner == nil {
		return fmt.Errorf("app not initialized")
	}
	at, err := scheduler.ParseClock(a.cfg.Schedule.At)
	if err != nil {
		return err
	}
	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)
	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		daily := scheduler.NewDailyScheduler(ctx, at, a.loc)
		daily.Name = "cycle"
		daily.RunImmediately = a.cfg.Schedule.RunImmediately
		daily.SkipWeekends = a.cfg.Schedule.SkipWeekends
		daily.Start(func() {
			if _, err := a.runner.RunCycle(ctx); err != nil {
				logger.Warnf("本轮决策未执行: %v", err)
			}
		})
		return nil
	})
	return group.Wait()
}

// Runner 暴露决策引擎（测试与命令行复用）。
func (a *App) Runner() *engine.Runner {
	if a == nil {
		return nil
	}
	return a.runner
}

// Ledger 暴露账本。
func (a *App) Ledger() *ledger.Ledger {
	if a == nil {
		return nil
	}
	return a.ledger
}

// Metrics 暴露指标注册表。
func (a *App) Metrics() *metrics.Metrics {
	if a == nil {
		return nil
	}
	return a.metrics
}

// Close 按构建的逆序释放资源。
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
