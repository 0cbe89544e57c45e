// Package report 把一轮决策结果写成 HTML 报告（含图表、可选 PNG 截图与 YAML 附件）。
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"magpie/internal/advisory"
	"magpie/internal/config"
	"magpie/internal/engine"
	"magpie/internal/logger"
)

const (
	reportFile = "report.html"
	chartFile  = "scores.html"
	pngFile    = "report.png"
	yamlFile   = "summary.yaml"
)

// Reporter 实现 engine.Reporter。
type Reporter struct {
	Dir       string
	Title     string
	WriteYAML bool
	// Snapshotter 为 nil 时不截图。
	Snapshotter Snapshotter
	// Reviewer 为 nil 时不生成 CIO 复盘与 Red Team 审计。
	Reviewer advisory.Reviewer
	// Terminal 非 nil 时输出摘要表。
	Terminal io.Writer
}

func New(cfg config.ReportConfig, reviewer advisory.Reviewer) *Reporter {
	r := &Reporter{
		Dir:       cfg.Dir,
		Title:     cfg.Title,
		WriteYAML: cfg.WriteYAML,
		Reviewer:  reviewer,
	}
	if cfg.SnapshotPNG {
		r.Snapshotter = ChromeSnapshotter{}
	}
	return r
}

// Publish 写入 <dir>/<日期>/ 下的报告文件；同日多次运行覆盖前一份。
func (r *Reporter) Publish(ctx context.Context, s engine.Summary) error {
	if r.Terminal != nil {
		fmt.Fprintln(r.Terminal, RenderTable(s))
	}
	if r.Dir == "" {
		return nil
	}
	dir := filepath.Join(r.Dir, stamp(s.FinishedAt))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	chart := ""
	if len(s.Results) > 0 {
		var buf bytes.Buffer
		if err := renderScoreChart(&buf, s); err != nil {
			logger.Warnf("[report] 图表渲染失败: %v", err)
		} else if err := os.WriteFile(filepath.Join(dir, chartFile), buf.Bytes(), 0o644); err != nil {
			return err
		} else {
			chart = chartFile
		}
	}

	var memos Memos
	if r.Reviewer != nil {
		in := advisory.ReviewInput{AuditLines: s.AuditLines(), Macro: s.News, Day: s.FinishedAt}
		memos.Review = r.Reviewer.Review(ctx, in)
		memos.RedTeam = r.Reviewer.RedTeam(ctx, in)
	}

	var page bytes.Buffer
	if err := renderPage(&page, buildPage(r.Title, s, memos, chart)); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	htmlPath := filepath.Join(dir, reportFile)
	if err := os.WriteFile(htmlPath, page.Bytes(), 0o644); err != nil {
		return err
	}
	logger.Infof("[report] 报告已生成: %s", htmlPath)

	if r.WriteYAML {
		out, err := MarshalSummary(s)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, yamlFile), out, 0o644); err != nil {
			return err
		}
	}

	if r.Snapshotter != nil {
		png, err := r.Snapshotter.Snapshot(ctx, htmlPath)
		if err != nil {
			// 截图依赖本机 Chrome，失败不影响报告本身
			logger.Warnf("[report] 截图失败: %v", err)
			return nil
		}
		if err := os.WriteFile(filepath.Join(dir, pngFile), png, 0o644); err != nil {
			return err
		}
	}
	return nil
}
