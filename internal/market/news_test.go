package market

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewsCache_Context(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 3, 2, 14, 0, 0, 0, ChinaStandardTime)
	body := strings.Join([]string{
		`{"title":"央行降准 0.5 个百分点","time":"2026-03-02 09:15:00","source":"EastMoney","content":"释放长期流动性约一万亿元，市场情绪回暖。"}`,
		`{"title":"红海航运再度受阻","time":"2026-03-02 11:20:00","source":"CLS","digest":"短"}`,
		`not json`,
		`{"title":"x","time":"2026-03-02 12:00:00"}`,
		`{"title":"央行降准 0.5 个百分点","time":"2026-03-02 13:00:00","source":"CLS"}`,
		`{"title":"隔夜美股收涨","time":"2026-03-02 07:00:00"}`,
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "news_2026-03-02.jsonl"), []byte(body), 0o644))

	out, err := NewNewsCache(dir, nil).Context(context.Background(), day)
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "[03-02 11:20] [CLS] 红海航运再度受阻", lines[0])
	assert.Equal(t, "[03-02 09:15] [EM] 央行降准 0.5 个百分点", lines[1])
	assert.Equal(t, "   (摘要: 释放长期流动性约一万亿元，市场情绪回暖。)", lines[2])
	assert.Equal(t, "[03-02 07:00] [Local] 隔夜美股收涨", lines[3])
}

func TestNewsCache_BudgetAndMissingFile(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 3, 3, 9, 0, 0, 0, ChinaStandardTime)
	body := `{"title":"第一条新闻标题","time":"2026-03-03 10:00:00"}
{"title":"第二条新闻标题","time":"2026-03-03 09:00:00"}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "news_2026-03-03.jsonl"), []byte(body), 0o644))

	cache := NewNewsCache(dir, nil)
	cache.Budget = 30
	out, err := cache.Context(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, "[03-03 10:00] [Local] 第一条新闻标题", out)

	out, err = cache.Context(context.Background(), day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, out)
}
