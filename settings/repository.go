package settings

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/c360/brokerkit/metric"
	"github.com/c360/brokerkit/pkg/cache"
)

// ChangeListener observes repository mutations that may have altered lookup
// results.
type ChangeListener interface {
	OnChange()
}

// Merger folds the next more specific value into the accumulator and returns
// the new accumulator. Implementations must not retain next.
type Merger[T any] func(acc, next T) T

// Repository maps wildcard patterns to values of type T and resolves lookup
// keys against them.
type Repository[T any] interface {
	// AddMatch registers or overwrites a pattern. Invalid patterns fail
	// with errors.ErrInvalidPattern.
	AddMatch(pattern string, value T) error

	// AddImmutableMatch registers a pattern that cannot be removed
	// afterwards (it can still be overwritten).
	AddImmutableMatch(pattern string, value T) error

	// Match returns the resolved value for key, falling back to the
	// default when no pattern matches. Pure read.
	Match(key string) T

	// RemoveMatch removes a pattern. Removing an immutable pattern is a
	// no-op logged at debug level.
	RemoveMatch(pattern string)

	// SetDefault sets the fallback value and clears the cache.
	SetDefault(value T)

	// RegisterListener adds a mutation listener.
	RegisterListener(listener ChangeListener)

	// UnregisterListener removes a previously registered listener.
	UnregisterListener(listener ChangeListener)

	// Clear drops all patterns, listeners, and cache entries.
	Clear()

	// CacheSize reports the number of cached lookup results.
	CacheSize() int
}

// Option configures a repository.
type Option[T any] func(*hierarchicalRepository[T])

// WithMerger makes the payload type mergeable: matching values are folded
// least specific first through the merger, so more specific values override.
// Without a merger the most specific value is returned as-is.
func WithMerger[T any](merger Merger[T]) Option[T] {
	return func(r *hierarchicalRepository[T]) {
		r.merger = merger
	}
}

// WithLogger sets the logger used for debug and listener failure entries.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(r *hierarchicalRepository[T]) {
		r.logger = logger.With("component", "settings")
	}
}

// WithMetricsRegistry wires repository counters (cache hits/misses, pattern
// count) into the platform metrics.
func WithMetricsRegistry[T any](registry *metric.MetricsRegistry) Option[T] {
	return func(r *hierarchicalRepository[T]) {
		r.metrics = registry.CoreMetrics()
	}
}

// hierarchicalRepository resolves keys against wildcard patterns under a
// single reader/writer lock. The cache is separately synchronized so lookups
// can probe it without taking the lock; see the package documentation for
// the coherence protocol.
type hierarchicalRepository[T any] struct {
	// lock guards matches, immutables, defaultValue, and listeners. It
	// also orders cache clears against pattern mutations: the cache is
	// cleared while holding the write lock, before the pattern set
	// changes, and readers insert computed results while still holding
	// the read lock.
	lock sync.RWMutex

	matches    map[string]*match[T]
	immutables map[string]struct{}
	listeners  []ChangeListener

	defaultValue T
	hasDefault   bool

	resolved cache.Cache[T]

	merger  Merger[T]
	logger  *slog.Logger
	metrics *metric.Metrics
}

// NewRepository creates an empty repository.
func NewRepository[T any](opts ...Option[T]) Repository[T] {
	resolved, _ := cache.New[T]()
	r := &hierarchicalRepository[T]{
		matches:    make(map[string]*match[T]),
		immutables: make(map[string]struct{}),
		resolved:   resolved,
		logger:     slog.Default().With("component", "settings"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddMatch registers or overwrites a pattern.
func (r *hierarchicalRepository[T]) AddMatch(pattern string, value T) error {
	return r.addMatch(pattern, value, false)
}

// AddImmutableMatch registers a non-removable pattern.
func (r *hierarchicalRepository[T]) AddImmutableMatch(pattern string, value T) error {
	return r.addMatch(pattern, value, true)
}

func (r *hierarchicalRepository[T]) addMatch(pattern string, value T, immutable bool) error {
	m, err := newMatch(pattern, value)
	if err != nil {
		return err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	// Clear before mutating so a reader computing against the old pattern
	// set cannot install a stale result afterwards.
	r.resolved.Clear()

	if immutable {
		r.immutables[pattern] = struct{}{}
	}
	r.matches[pattern] = m
	if r.metrics != nil {
		r.metrics.SettingsPatterns.Set(float64(len(r.matches)))
	}
	r.notifyListeners()
	return nil
}

// Match returns the resolved value for key.
func (r *hierarchicalRepository[T]) Match(key string) T {
	if value, ok := r.resolved.Get(key); ok {
		if r.metrics != nil {
			r.metrics.SettingsCacheHits.Inc()
		}
		return value
	}
	if r.metrics != nil {
		r.metrics.SettingsCacheMisses.Inc()
	}

	r.lock.RLock()
	defer r.lock.RUnlock()

	value, resolvable := r.resolve(key)
	if resolvable {
		// Inserted under the read lock: a writer clearing the cache
		// holds the write lock and therefore cannot interleave.
		if _, err := r.resolved.Set(key, value); err != nil {
			r.logger.Debug("skipping cache insert", "key", key, "error", err)
		}
	}
	return value
}

// resolve computes the merged value for key against the current pattern set.
// Caller holds at least the read lock. The second return reports whether the
// result came from a pattern or a configured default, as opposed to the bare
// zero value.
func (r *hierarchicalRepository[T]) resolve(key string) (T, bool) {
	var candidates []string
	for pattern, m := range r.matches {
		if m.matches(key) {
			candidates = append(candidates, pattern)
		}
	}

	if len(candidates) == 0 {
		return r.defaultValue, r.hasDefault
	}

	// Least specific first; the comparator returns positive when its left
	// argument is the less specific side.
	sort.SliceStable(candidates, func(i, j int) bool {
		return compareSpecificity(candidates[i], candidates[j]) > 0
	})

	if r.merger == nil {
		// Not mergeable: the most specific value wins outright.
		return r.matches[candidates[len(candidates)-1]].value, true
	}

	acc := r.matches[candidates[0]].value
	for _, pattern := range candidates[1:] {
		acc = r.merger(acc, r.matches[pattern].value)
	}
	return acc, true
}

// RemoveMatch removes a pattern unless it is immutable.
func (r *hierarchicalRepository[T]) RemoveMatch(pattern string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, immutable := r.immutables[pattern]; immutable {
		r.logger.Debug("cannot remove immutable match", "pattern", pattern)
		return
	}

	r.resolved.Clear()
	delete(r.matches, pattern)
	if r.metrics != nil {
		r.metrics.SettingsPatterns.Set(float64(len(r.matches)))
	}
	r.notifyListeners()
}

// SetDefault sets the fallback value returned when no pattern matches.
func (r *hierarchicalRepository[T]) SetDefault(value T) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.resolved.Clear()
	r.defaultValue = value
	r.hasDefault = true
	r.notifyListeners()
}

// RegisterListener adds a mutation listener.
func (r *hierarchicalRepository[T]) RegisterListener(listener ChangeListener) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.listeners = append(r.listeners, listener)
}

// UnregisterListener removes a previously registered listener.
func (r *hierarchicalRepository[T]) UnregisterListener(listener ChangeListener) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for i, l := range r.listeners {
		if l == listener {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// Clear drops all patterns, listeners, and cache entries.
func (r *hierarchicalRepository[T]) Clear() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.resolved.Clear()
	r.matches = make(map[string]*match[T])
	r.listeners = nil
	if r.metrics != nil {
		r.metrics.SettingsPatterns.Set(0)
	}
}

// CacheSize reports the number of cached lookup results.
func (r *hierarchicalRepository[T]) CacheSize() int {
	return r.resolved.Size()
}

// notifyListeners fires every listener, isolating panics so one listener
// cannot prevent the rest from observing the change. Caller holds the write
// lock.
func (r *hierarchicalRepository[T]) notifyListeners() {
	for _, listener := range r.listeners {
		r.notifyOne(listener)
	}
}

func (r *hierarchicalRepository[T]) notifyOne(listener ChangeListener) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("repository change listener failed", "panic", rec)
		}
	}()
	listener.OnChange()
}
