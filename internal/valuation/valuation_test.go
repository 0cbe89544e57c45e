package valuation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"magpie/internal/gateway/eastmoney"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockHistory struct {
	mock.Mock
	calls int32
}

func (m *mockHistory) IndexCloses(ctx context.Context, code string) ([]float64, error) {
	atomic.AddInt32(&m.calls, 1)
	args := m.Called(ctx, code)
	out, _ := args.Get(0).([]float64)
	return out, args.Error(1)
}

// series 生成 n 个收盘价，最新值位于给定分位。
func series(n int, last float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i % 101) // 0..100
	}
	out[0], out[1] = 0, 100
	out[n-1] = last
	return out
}

var indices = map[string]string{"沪深300": "sh000300", "恒生科技": "hkHSTECH"}

func TestLookup_NeutralFallbacks(t *testing.T) {
	h := &mockHistory{}
	h.On("IndexCloses", mock.Anything, "sh000300").Return(series(100, 50), nil)
	h.On("IndexCloses", mock.Anything, "hkHSTECH").Return(nil, fmt.Errorf("wrap: %w", eastmoney.ErrUnsupportedMarket))
	svc := NewService(h, indices, Options{Attempts: 3})

	r := svc.Lookup(context.Background(), "", "core")
	assert.Equal(t, 1.0, r.Multiplier)
	assert.False(t, r.Known)

	r = svc.Lookup(context.Background(), "纳斯达克100", "core")
	assert.Equal(t, Neutral("no mapped index"), r)

	r = svc.Lookup(context.Background(), "恒生科技", "core")
	assert.Equal(t, Neutral("market not covered"), r)
	h.AssertNumberOfCalls(t, "IndexCloses", 1)

	r = svc.Lookup(context.Background(), "沪深300", "core")
	assert.Equal(t, Neutral("data limited"), r)
}

func TestLookup_RetriesThenNeutral(t *testing.T) {
	h := &mockHistory{}
	h.On("IndexCloses", mock.Anything, "sh000300").Return(nil, errors.New("boom"))
	svc := NewService(h, indices, Options{Attempts: 2, RetryDelay: time.Millisecond})

	r := svc.Lookup(context.Background(), "沪深300", "core")
	assert.Equal(t, 1.0, r.Multiplier)
	assert.Equal(t, "neutral: upstream unavailable", r.Descriptor)
	assert.Equal(t, int32(2), atomic.LoadInt32(&h.calls))
}

func TestLookup_ComputesAndCaches(t *testing.T) {
	h := &mockHistory{}
	h.On("IndexCloses", mock.Anything, "sh000300").Return(series(300, 10), nil)
	svc := NewService(h, indices, Options{Attempts: 1})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := svc.Lookup(context.Background(), "沪深300", "core")
			assert.Equal(t, 1.5, r.Multiplier)
			assert.True(t, r.Known)
		}()
	}
	wg.Wait()
	r := svc.Lookup(context.Background(), "沪深300", "dividend")
	assert.Equal(t, 1.5, r.Multiplier)
	assert.Equal(t, "红利黄金坑(分位10%)", r.Descriptor)
	assert.LessOrEqual(t, atomic.LoadInt32(&h.calls), int32(5))
	calls := atomic.LoadInt32(&h.calls)
	svc.Lookup(context.Background(), "沪深300", "satellite")
	assert.Equal(t, calls, atomic.LoadInt32(&h.calls), "cached series reused")
}

type gatedHistory struct {
	started chan struct{}
	release chan struct{}
	calls   int32
}

func (g *gatedHistory) IndexCloses(ctx context.Context, _ string) ([]float64, error) {
	if atomic.AddInt32(&g.calls, 1) == 1 {
		close(g.started)
	}
	select {
	case <-g.release:
		return series(300, 10), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestLookup_CallerDeadlineDoesNotCancelSharedFetch(t *testing.T) {
	h := &gatedHistory{started: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(h, indices, Options{Attempts: 1, FetchTimeout: 5 * time.Second})

	short, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	first := make(chan Result, 1)
	go func() { first <- svc.Lookup(short, "沪深300", "core") }()
	<-h.started

	second := make(chan Result, 1)
	go func() { second <- svc.Lookup(context.Background(), "沪深300", "core") }()

	r := <-first
	assert.Equal(t, "neutral: upstream unavailable", r.Descriptor)

	close(h.release)
	r = <-second
	assert.True(t, r.Known)
	assert.Equal(t, 1.5, r.Multiplier)
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.calls))
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, 0.5, Percentile(nil))
	assert.Equal(t, 0.5, Percentile([]float64{3, 3, 3}))
	assert.Equal(t, 0.25, Percentile([]float64{0, 4, 1}))

	long := make([]float64, Window+10)
	long[0] = 1000 // 超出窗口，不参与计算
	for i := 10; i < len(long); i++ {
		long[i] = float64(i % 7)
	}
	long[len(long)-1] = 6
	assert.Equal(t, 1.0, Percentile(long))
}

func TestAssess(t *testing.T) {
	cases := []struct {
		strategy string
		p        float64
		mult     float64
	}{
		{"core", 0.1, 1.5}, {"core", 0.3, 1.2}, {"core", 0.5, 1.0}, {"core", 0.85, 0.5}, {"core", 0.95, 0.0},
		{"satellite", 0.1, 1.0}, {"satellite", 0.86, 0.0},
		{"dividend", 0.2, 1.5}, {"dividend", 0.5, 1.0}, {"dividend", 0.75, 0.0},
		{"bond", 0.1, 1.0},
	}
	for _, tc := range cases {
		r := Assess(tc.strategy, tc.p)
		assert.Equal(t, tc.mult, r.Multiplier, "%s@%.2f", tc.strategy, tc.p)
	}
	require.Equal(t, "neutral: strategy undefined", Assess("bond", 0.1).Descriptor)
}
