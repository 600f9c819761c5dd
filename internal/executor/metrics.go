package executor

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the orchestration executor.
type Metrics struct {
	HandlersExecutedTotal *prometheus.CounterVec
	HandlerTimeoutsTotal  *prometheus.CounterVec
	HandlerDuration       *prometheus.HistogramVec

	ExecutionsTotal       *prometheus.CounterVec
	DegradedOutcomesTotal prometheus.Counter
	InterventionsTotal    prometheus.Counter
}

// NewMetrics creates and registers executor metrics.
//
// sync.Once guards registration so repeated construction never panics with
// duplicate collectors. All metrics are prefixed with "questd_executor_".
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			HandlersExecutedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "questd_executor_handlers_executed_total",
					Help: "Total number of handler invocations",
				},
				[]string{"handler", "status"}, // status: "success" or "failure"
			),

			HandlerTimeoutsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "questd_executor_handler_timeouts_total",
					Help: "Total number of handler invocation timeouts",
				},
				[]string{"handler"},
			),

			HandlerDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "questd_executor_handler_duration_seconds",
					Help:    "Duration of handler invocations in seconds",
					Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~200s
				},
				[]string{"handler"},
			),

			ExecutionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "questd_executor_executions_total",
					Help: "Total number of topology executions",
				},
				[]string{"topology"},
			),

			DegradedOutcomesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "questd_executor_degraded_outcomes_total",
					Help: "Total number of outcomes assembled in degraded mode",
				},
			),

			InterventionsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "questd_executor_interventions_total",
					Help: "Total number of graph monitor intervention passes",
				},
			),
		}
	})

	return globalMetrics
}

// RecordHandler records one handler invocation.
func (m *Metrics) RecordHandler(handler string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.HandlersExecutedTotal.WithLabelValues(handler, status).Inc()
	m.HandlerDuration.WithLabelValues(handler).Observe(duration.Seconds())
}

// RecordHandlerTimeout records a per-handler timeout.
func (m *Metrics) RecordHandlerTimeout(handler string) {
	m.HandlerTimeoutsTotal.WithLabelValues(handler).Inc()
}

// RecordExecution records one topology execution and its degradation state.
func (m *Metrics) RecordExecution(topology string, degraded bool) {
	m.ExecutionsTotal.WithLabelValues(topology).Inc()
	if degraded {
		m.DegradedOutcomesTotal.Inc()
	}
}

// RecordIntervention records a graph monitor intervention pass.
func (m *Metrics) RecordIntervention() {
	m.InterventionsTotal.Inc()
}
