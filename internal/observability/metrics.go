// Package observability exposes the Prometheus metrics of the service.
//
// Metrics are registered on the registerer passed to NewMetrics so tests can
// use a throwaway registry. A nil *Metrics is valid and records nothing.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "nexus"

type Metrics struct {
	// LLMCallsTotal counts model calls. Labels: site (interpret, parse_task, schedule,
	// reflection, journal, translate), outcome (success, error).
	LLMCallsTotal *prometheus.CounterVec

	// LLMCallSeconds measures model call latency. Labels: site.
	LLMCallSeconds *prometheus.HistogramVec

	// InterpreterFallbacksTotal counts commands answered with the fixed apology.
	InterpreterFallbacksTotal prometheus.Counter

	// RollbacksTotal counts optimistic mutations undone after a failed write. Labels: op.
	RollbacksTotal *prometheus.CounterVec

	// NormalizationRejectsTotal counts generated task objects dropped by normalization.
	NormalizationRejectsTotal prometheus.Counter

	// AlarmsFiredTotal counts alarms handed to the notifier.
	AlarmsFiredTotal prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LLMCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total model calls by call site and outcome",
		}, []string{"site", "outcome"}),
		LLMCallSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Model call latency",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}, []string{"site"}),
		InterpreterFallbacksTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "assistant",
			Name:      "interpreter_fallbacks_total",
			Help:      "Commands answered with the fallback reply",
		}),
		RollbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tasks",
			Name:      "rollbacks_total",
			Help:      "Optimistic task mutations rolled back after a persistence failure",
		}, []string{"op"}),
		NormalizationRejectsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tasks",
			Name:      "normalization_rejects_total",
			Help:      "Generated task objects dropped during normalization",
		}),
		AlarmsFiredTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "scheduler",
			Name:      "alarms_fired_total",
			Help:      "Task alarms handed to the notifier",
		}),
	}
}

func (m *Metrics) LLMCall(site string, err error, seconds float64) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.LLMCallsTotal.WithLabelValues(site, outcome).Inc()
	m.LLMCallSeconds.WithLabelValues(site).Observe(seconds)
}

func (m *Metrics) Fallback() {
	if m == nil {
		return
	}
	m.InterpreterFallbacksTotal.Inc()
}

func (m *Metrics) Rollback(op string) {
	if m == nil {
		return
	}
	m.RollbacksTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) Rejected(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.NormalizationRejectsTotal.Add(float64(n))
}

func (m *Metrics) AlarmFired() {
	if m == nil {
		return
	}
	m.AlarmsFiredTotal.Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
