package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"magpie/internal/app"
	"magpie/internal/config"
	"magpie/internal/decision"
	"magpie/internal/logger"

	"github.com/spf13/cobra"
)

type cliState struct {
	cfgPath string
	cfg     *config.Config
	files   []*os.File
}

func main() {
	state := &cliState{}
	defer state.closeFiles()
	if err := newRootCmd(state).Execute(); err != nil {
		state.closeFiles()
		log.Fatalf("运行失败: %v", err)
	}
}

func newRootCmd(state *cliState) *cobra.Command {
	defaultPath := os.Getenv("MAGPIE_CONFIG")
	if defaultPath == "" {
		defaultPath = "configs/config.yaml"
	}
	root := &cobra.Command{
		Use:           "magpie",
		Short:         "magpie - 场内基金每日定投信号",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return state.load()
		},
	}
	root.PersistentFlags().StringVarP(&state.cfgPath, "config", "c", defaultPath, "配置文件路径")

	root.AddCommand(newRunCmd(state), newServeCmd(state), newLedgerCmd(state))
	return root
}

func newRunCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "立即执行一轮决策并退出",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			a, err := app.NewApp(state.cfg, app.WithTerminalTable(true))
			if err != nil {
				return fmt.Errorf("初始化应用失败: %w", err)
			}
			defer a.Close()
			summary, err := a.RunOnce(ctx)
			if err != nil {
				return err
			}
			counts := summary.Counts()
			logger.Infof("本轮完成 run=%s buy=%d sell=%d hold=%d failed=%d", summary.RunID,
				counts[decision.ActionBuy], counts[decision.ActionSell], counts[decision.ActionHold], len(summary.Failures))
			return nil
		},
	}
}

func newServeCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "常驻运行：每日定时决策并提供 HTTP 查询接口",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			a, err := app.NewApp(state.cfg, app.WithFundWatch(true))
			if err != nil {
				return fmt.Errorf("初始化应用失败: %w", err)
			}
			defer a.Close()
			return a.Serve(ctx)
		},
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (s *cliState) load() error {
	if s.cfg != nil {
		return nil
	}
	cfg, err := config.Load(s.cfgPath)
	if err != nil {
		return fmt.Errorf("读取配置失败: %w", err)
	}
	logger.SetFormat(cfg.App.LogFormat)
	if err := s.setupLogOutput(cfg.App.LogPath); err != nil {
		return fmt.Errorf("初始化日志文件失败: %w", err)
	}
	logger.SetLLMWriter(nil)
	if strings.TrimSpace(cfg.App.LLMLogPath) != "" {
		f, err := openAppend(cfg.App.LLMLogPath)
		if err != nil {
			return fmt.Errorf("初始化 LLM 日志失败: %w", err)
		}
		s.files = append(s.files, f)
		logger.SetLLMWriter(f)
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，标的=%s）", cfg.App.Env, fundSource(cfg))
	s.cfg = cfg
	return nil
}

// setupLogOutput 把日志同时写到 stdout 与运行日志文件；每次启动覆盖上一份。
func (s *cliState) setupLogOutput(path string) error {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil
	}
	if dir := filepath.Dir(trimmed); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	s.files = append(s.files, file)
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return nil
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func (s *cliState) closeFiles() {
	for _, f := range s.files {
		_ = f.Close()
	}
	s.files = nil
}

func fundSource(cfg *config.Config) string {
	if cfg.FundsPath != "" {
		return cfg.FundsPath
	}
	return fmt.Sprintf("内联 %d 个", len(cfg.Funds))
}
