package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndUnregister(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter_total",
		Help: "test counter",
	})

	err := registry.RegisterCounter("journal", "test_counter_total", counter)
	require.NoError(t, err)

	// Same component.metric key is rejected
	err = registry.RegisterCounter("journal", "test_counter_total", counter)
	require.Error(t, err)

	assert.True(t, registry.Unregister("journal", "test_counter_total"))
	assert.False(t, registry.Unregister("journal", "test_counter_total"))
}

func TestCoreMetricsPresent(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	require.NotNil(t, m)
	assert.NotNil(t, m.FramesDecoded)
	assert.NotNil(t, m.SettingsCacheHits)
	assert.NotNil(t, m.JournalFlushes)

	// Core metrics are usable immediately
	m.SettingsCacheHits.Inc()
	m.FramesDecoded.WithLabelValues("SEND").Inc()
}

func TestHandlerServesRegistry(t *testing.T) {
	registry := NewMetricsRegistry()
	assert.NotNil(t, registry.Handler())
}
