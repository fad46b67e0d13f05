// Package settings implements the hierarchical pattern repository that maps
// wildcard-bearing address patterns to configuration values.
//
// # Overview
//
// Destinations in the broker are dotted-token addresses such as
// "orders.europe.created". Operators configure per-address values (limits,
// policies) against patterns over the same alphabet with two wildcards: '*'
// matches exactly one token, '#' matches any run of characters, dots
// included. The delimiters written next to '#' are still required: "#" alone
// matches every key, "a.#" matches "a.b" and "a.b.c" but not "a", and
// "a.#.z" matches "a.b.z" but not "a.z". Looking up an
// address resolves every matching pattern, orders them by specificity, and
// reduces them to a single value.
//
// # Resolution
//
// Matching patterns are ordered from least specific to most specific. When
// the repository is constructed with a merger (see WithMerger), the values
// are folded in that order, each more specific value merged into the
// accumulator, so the most specific settings win field by field. Without a
// merger the most specific value is returned as-is.
//
// # Caching
//
// Resolution results are cached per lookup key. The cache is probed without
// taking the repository lock; misses recompute under the read lock and
// insert the result while still holding it. Mutations clear the cache under
// the write lock before touching the pattern set, which keeps a concurrent
// reader from installing a result computed against the old pattern set after
// the mutation becomes visible.
//
// # Listeners
//
// Registered ChangeListeners observe every mutation that may alter lookup
// results. Listener panics are recovered and logged; one misbehaving
// listener never prevents the others from running.
package settings
