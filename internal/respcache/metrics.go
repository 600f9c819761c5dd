package respcache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the response cache.
type Metrics struct {
	HitsTotal   prometheus.Counter
	MissesTotal prometheus.Counter
	Size        prometheus.Gauge
}

// NewMetrics creates and registers response cache metrics. Registration is
// guarded by sync.Once so repeated construction never panics.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			HitsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "questd_cache_hits_total",
					Help: "Total number of response cache hits",
				},
			),

			MissesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "questd_cache_misses_total",
					Help: "Total number of response cache misses",
				},
			),

			Size: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "questd_cache_size",
					Help: "Current number of cached responses",
				},
			),
		}
	})

	return globalMetrics
}

// RecordHit records a cache hit.
func (m *Metrics) RecordHit() {
	m.HitsTotal.Inc()
}

// RecordMiss records a cache miss.
func (m *Metrics) RecordMiss() {
	m.MissesTotal.Inc()
}

// SetSize updates the cache size gauge.
func (m *Metrics) SetSize(size int) {
	m.Size.Set(float64(size))
}
