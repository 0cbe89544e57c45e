package report

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	snapshotWidthPx  = 640
	snapshotHeightPx = 900
	snapshotTimeout  = 30 * time.Second
)

// Snapshotter 把本地 HTML 文件截成 PNG。
type Snapshotter interface {
	Snapshot(ctx context.Context, htmlPath string) ([]byte, error)
}

// ChromeSnapshotter 使用本机 headless Chrome 截图。
type ChromeSnapshotter struct{}

func (ChromeSnapshotter) Snapshot(ctx context.Context, htmlPath string) ([]byte, error) {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return nil, err
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()
	timeoutCtx, cancelTimeout := context.WithTimeout(parent, snapshotTimeout)
	defer cancelTimeout()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(snapshotWidthPx, snapshotHeightPx),
		chromedp.Navigate("file://" + filepath.ToSlash(abs)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// echarts 动画结束后再截图
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&png, 90),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, fmt.Errorf("chromedp snapshot: %w", err)
	}
	return png, nil
}
