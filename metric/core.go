package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics (not component-specific)
type Metrics struct {
	// Transport metrics
	ConnectionsActive prometheus.Gauge
	FramesDecoded     *prometheus.CounterVec
	DecodeErrors      *prometheus.CounterVec
	FramesSent        *prometheus.CounterVec

	// Address settings metrics
	SettingsCacheHits   prometheus.Counter
	SettingsCacheMisses prometheus.Counter
	SettingsPatterns    prometheus.Gauge

	// Journal metrics
	JournalFlushes      prometheus.Counter
	JournalBytesWritten prometheus.Counter
	JournalWriteRate    prometheus.Gauge

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "brokerkit",
				Subsystem: "transport",
				Name:      "connections_active",
				Help:      "Number of currently open client connections",
			},
		),

		FramesDecoded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "brokerkit",
				Subsystem: "stomp",
				Name:      "frames_decoded_total",
				Help:      "Total number of frames decoded",
			},
			[]string{"command"},
		),

		DecodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "brokerkit",
				Subsystem: "stomp",
				Name:      "decode_errors_total",
				Help:      "Total number of frame decode failures",
			},
			[]string{"code"},
		),

		FramesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "brokerkit",
				Subsystem: "stomp",
				Name:      "frames_sent_total",
				Help:      "Total number of frames written to clients",
			},
			[]string{"command"},
		),

		SettingsCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "brokerkit",
				Subsystem: "settings",
				Name:      "cache_hits_total",
				Help:      "Address settings lookups served from the cache",
			},
		),

		SettingsCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "brokerkit",
				Subsystem: "settings",
				Name:      "cache_misses_total",
				Help:      "Address settings lookups that required a full match computation",
			},
		),

		SettingsPatterns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "brokerkit",
				Subsystem: "settings",
				Name:      "patterns",
				Help:      "Number of registered match patterns",
			},
		),

		JournalFlushes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "brokerkit",
				Subsystem: "journal",
				Name:      "flushes_total",
				Help:      "Total number of timed buffer flushes",
			},
		),

		JournalBytesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "brokerkit",
				Subsystem: "journal",
				Name:      "bytes_written_total",
				Help:      "Total bytes written through the journal",
			},
		),

		JournalWriteRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "brokerkit",
				Subsystem: "journal",
				Name:      "write_rate_bytes_per_second",
				Help:      "Journal write throughput over the last rate window",
			},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "brokerkit",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"component", "class"},
		),
	}
}
