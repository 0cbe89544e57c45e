package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"magpie/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBars(t *testing.T, dir, code string, n int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,open,high,low,close,volume\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		px := 1.0 + 0.01*float64(i%17) + 0.002*float64(i)
		fmt.Fprintf(&b, "%s,%.3f,%.3f,%.3f,%.3f,%d\n",
			start.AddDate(0, 0, i).Format("2006-01-02"), px, px*1.01, px*0.99, px, 100000+i*10)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, code+".csv"), []byte(b.String()), 0o644))
}

func loadTestConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cache := filepath.Join(dir, "cache")
	require.NoError(t, os.MkdirAll(cache, 0o755))
	writeBars(t, cache, "510300", 160)

	ledgerPath := filepath.Join(dir, "portfolio.json")
	if backend == "sqlite" {
		ledgerPath = filepath.Join(dir, "ledger.db")
	}
	body := fmt.Sprintf(`
app:
  log_level: error
  http_addr: "127.0.0.1:0"
data:
  cache_dir: %q
  news_dir: %q
ledger:
  backend: %s
  path: %q
journal:
  enabled: true
  path: %q
advisory:
  enabled: false
valuation:
  enabled: false
report:
  dir: %q
  write_yaml: true
funds:
  - code: "510300"
    name: 沪深300ETF
    index_name: 沪深300
    strategy_type: core
  - code: "159915"
    name: 创业板ETF
    strategy_type: satellite
`, cache, filepath.Join(dir, "news"), backend, ledgerPath, filepath.Join(dir, "journal.db"), filepath.Join(dir, "reports"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestApp_RunOnceWritesArtifacts(t *testing.T) {
	cfg := loadTestConfig(t, "json")
	a, err := NewApp(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	news := filepath.Join(cfg.Data.NewsDir, "news_"+time.Now().In(cfg.Location()).Format("2006-01-02")+".jsonl")
	require.NoError(t, os.MkdirAll(cfg.Data.NewsDir, 0o755))
	require.NoError(t, os.WriteFile(news, []byte(`{"title":"央行降准 0.5 个百分点","time":"2026-03-02 09:15:00","source":"EastMoney"}`+"\n"), 0o644))

	summary, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	assert.Contains(t, summary.News, "[EM] 央行降准")
	assert.Empty(t, summary.Failures)
	assert.NotEmpty(t, summary.RunID)

	// 缺失行情的标的走保守读数，仍然出现在结果里
	var missing bool
	for _, r := range summary.Results {
		if r.Fund.Code == "159915" {
			missing = true
			assert.True(t, r.Reading.Degraded)
		}
	}
	assert.True(t, missing)

	day := summary.FinishedAt.Format("2006-01-02")
	assert.FileExists(t, filepath.Join(cfg.Report.Dir, day, "report.html"))
	assert.FileExists(t, filepath.Join(cfg.Report.Dir, day, "summary.yaml"))

	last, ok := a.Runner().Last()
	require.True(t, ok)
	assert.Equal(t, summary.RunID, last.RunID)
}

func TestApp_SQLiteLedgerBackend(t *testing.T) {
	cfg := loadTestConfig(t, "sqlite")
	a, err := NewApp(cfg)
	require.NoError(t, err)
	_, err = a.RunOnce(context.Background())
	require.NoError(t, err)
	require.NoError(t, a.Close())

	led, err := OpenLedger(cfg)
	require.NoError(t, err)
	defer led.Close()
	assert.Equal(t, len(led.Positions()), len(led.Codes()))
}

func TestApp_ServeStopsOnCancel(t *testing.T) {
	cfg := loadTestConfig(t, "json")
	cfg.Schedule.At = "03:00"
	a, err := NewApp(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestStartupSummary_String(t *testing.T) {
	cfg := loadTestConfig(t, "json")
	s := buildStartupSummary(cfg, cfg.Funds)
	out := s.String()
	assert.Contains(t, out, "510300 沪深300ETF [core] 指数: 沪深300")
	assert.Contains(t, out, "159915 创业板ETF [satellite] 指数: -")
	assert.Contains(t, out, "投委会模型: (未启用)")
	assert.Contains(t, out, "共 2 个")
}
