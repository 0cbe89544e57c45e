// Package metrics 暴露决策周期相关的 Prometheus 指标。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 持有独立 registry，避免测试之间重复注册。
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal       prometheus.Counter
	CycleDuration     prometheus.Histogram
	DecisionsTotal    *prometheus.CounterVec // labels: action
	FailuresTotal     *prometheus.CounterVec // labels: stage
	AdvisoryTotal     *prometheus.CounterVec // labels: source
	TacticalScore     *prometheus.GaugeVec   // labels: code
	LedgerPositions   prometheus.Gauge
	LastCycleUnixTime prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "magpie_cycles_total",
			Help: "Completed decision cycles",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "magpie_cycle_duration_seconds",
			Help:    "Wall time of one decision cycle",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "magpie_decisions_total",
			Help: "Trade instructions produced, by action",
		}, []string{"action"}),
		FailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "magpie_instrument_failures_total",
			Help: "Per-instrument failures, by pipeline stage",
		}, []string{"stage"}),
		AdvisoryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "magpie_advisory_results_total",
			Help: "Advisory results, by source (model, fallback, disabled)",
		}, []string{"source"}),
		TacticalScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "magpie_tactical_score",
			Help: "Latest tactical score per instrument",
		}, []string{"code"}),
		LedgerPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "magpie_ledger_positions",
			Help: "Instruments with a non-zero position",
		}),
		LastCycleUnixTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "magpie_last_cycle_timestamp_seconds",
			Help: "Unix time of the last finished cycle",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CyclesTotal,
		m.CycleDuration,
		m.DecisionsTotal,
		m.FailuresTotal,
		m.AdvisoryTotal,
		m.TacticalScore,
		m.LedgerPositions,
		m.LastCycleUnixTime,
	)
	return m
}

// Registry 供测试读取指标。
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler 返回 /metrics 的 HTTP handler。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycle 在一轮结束时调用。
func (m *Metrics) ObserveCycle(started, finished time.Time, positions int) {
	if m == nil {
		return
	}
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(finished.Sub(started).Seconds())
	m.LedgerPositions.Set(float64(positions))
	m.LastCycleUnixTime.Set(float64(finished.Unix()))
}

func (m *Metrics) ObserveDecision(code, action string, score int) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(action).Inc()
	m.TacticalScore.WithLabelValues(code).Set(float64(score))
}

func (m *Metrics) ObserveFailure(stage string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveAdvisory(source string) {
	if m == nil {
		return
	}
	m.AdvisoryTotal.WithLabelValues(source).Inc()
}
