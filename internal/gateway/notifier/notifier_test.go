package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegram_SendText(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "42", body["chat_id"])
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.BaseURL = srv.URL
	tg.Backoff = func(int) time.Duration { return 0 }
	require.NoError(t, tg.SendText(context.Background(), "hello"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTelegram_IncompleteConfig(t *testing.T) {
	assert.Error(t, NewTelegram("", "1").SendText(context.Background(), "x"))
}

func TestDigestMessage(t *testing.T) {
	msg := DigestMessage("每日信号", []DigestLine{
		{Name: "沪深300ETF", Action: "买入", Amount: "¥1,000.00", Score: 72, Risk: "PASS", Reason: "tactical:strengthening"},
		{Name: "红利ETF", Action: "观望", Score: 50, Risk: "WARN"},
		{Name: "创业板ETF", Action: "买入", Amount: "¥500.00", Score: 61, Risk: "PASS"},
	}, "共 3 个标的", time.Date(2024, 3, 5, 14, 50, 0, 0, time.UTC))

	require.Len(t, msg.Sections, 2)
	assert.Equal(t, "买入", msg.Sections[0].Title)
	assert.Len(t, msg.Sections[0].Lines, 2)

	text := msg.RenderMarkdown()
	assert.True(t, strings.HasPrefix(text, "📡 每日信号"))
	assert.Contains(t, text, "- 沪深300ETF | 分:72 | PASS | ¥1,000.00 | tactical:strengthening")
	assert.Contains(t, text, "共 3 个标的")
}
