package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Observe(t *testing.T) {
	m := New()
	m.ObserveDecision("510300", "buy", 72)
	m.ObserveDecision("515080", "hold", 40)
	m.ObserveDecision("159915", "buy", 81)
	m.ObserveFailure("data")
	m.ObserveAdvisory("fallback")
	start := time.Unix(1_700_000_000, 0)
	m.ObserveCycle(start, start.Add(30*time.Second), 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("buy")))
	assert.Equal(t, 72.0, testutil.ToFloat64(m.TacticalScore.WithLabelValues("510300")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FailuresTotal.WithLabelValues("data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LedgerPositions))
	assert.Equal(t, float64(start.Add(30*time.Second).Unix()), testutil.ToFloat64(m.LastCycleUnixTime))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDecision("x", "buy", 1)
		m.ObserveFailure("data")
		m.ObserveAdvisory("model")
		m.ObserveCycle(time.Now(), time.Now(), 0)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveAdvisory("model")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `magpie_advisory_results_total{source="model"} 1`)
}
