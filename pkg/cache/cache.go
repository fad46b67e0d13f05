// Package cache provides a generic, thread-safe in-memory cache used by
// broker components that memoize computed results.
//
// The cache has no eviction policy of its own: entries live until they are
// deleted or the cache is cleared. Owners that invalidate on upstream
// mutations (such as the settings repository) call Clear. Statistics are
// always collected; Prometheus metrics are optional via WithMetrics.
package cache

import (
	"github.com/c360/brokerkit/errors"
	"github.com/c360/brokerkit/metric"
)

// Cache is a string-keyed cache of values of type V.
type Cache[V any] interface {
	// Get retrieves a value by key. The second return reports presence.
	Get(key string) (V, bool)

	// Set stores a value under key. Returns true when a new entry was
	// created, false when an existing entry was overwritten.
	Set(key string, value V) (bool, error)

	// Delete removes an entry. Returns true when the entry existed.
	Delete(key string) (bool, error)

	// Clear removes all entries.
	Clear()

	// Size returns the current number of entries.
	Size() int

	// Stats returns cache statistics (always collected).
	Stats() *Statistics
}

// Option configures cache behavior using the functional options pattern.
type Option func(*options)

type options struct {
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
}

// WithMetrics enables Prometheus metrics export for cache statistics.
// Ignored when registry is nil or prefix is empty.
func WithMetrics(registry *metric.MetricsRegistry, prefix string) Option {
	return func(opts *options) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// New creates a new cache.
func New[V any](opts ...Option) (Cache[V], error) {
	cfg := &options{}
	for _, opt := range opts {
		opt(cfg)
	}
	return newSimpleCache[V](cfg)
}

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.New("empty cache key"),
			"Cache", "validateKey", "key validation")
	}
	return nil
}
