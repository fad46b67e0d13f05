package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/brokerkit/metric"
)

// cacheMetrics exposes cache statistics as Prometheus metrics.
type cacheMetrics struct {
	hits   prometheus.Counter
	misses prometheus.Counter
	size   prometheus.Gauge
}

func newCacheMetrics(registry *metric.MetricsRegistry, prefix string) (*cacheMetrics, error) {
	hits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: prefix + "_cache_hits_total",
		Help: "Total cache hits",
	})
	misses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: prefix + "_cache_misses_total",
		Help: "Total cache misses",
	})
	size := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: prefix + "_cache_entries",
		Help: "Current cache entry count",
	})

	componentName := "cache"
	if err := registry.RegisterCounter(componentName, prefix+"_cache_hits_total", hits); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(componentName, prefix+"_cache_misses_total", misses); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(componentName, prefix+"_cache_entries", size); err != nil {
		return nil, err
	}

	return &cacheMetrics{hits: hits, misses: misses, size: size}, nil
}

func (m *cacheMetrics) recordHit()  { m.hits.Inc() }
func (m *cacheMetrics) recordMiss() { m.misses.Inc() }

func (m *cacheMetrics) updateSize(size int) {
	m.size.Set(float64(size))
}
