// Package brokerkit is the core of a STOMP message broker: the pieces that
// are hard to get right and that everything else is wired around.
//
// Three independent subsystems make up the core:
//
//   - settings: a hierarchical pattern repository resolving destination
//     addresses against wildcard patterns, merging matches by specificity
//     behind a mutation-coherent cache.
//
//   - stomp: an incremental frame decoder for the 1.0 wire protocol that
//     tolerates arbitrary fragmentation and reports version signals for
//     CR LF end-of-lines.
//
//   - journal: a sequential file factory with a timed write-coalescing
//     buffer and a single-threaded asynchronous write executor.
//
// The broker and cmd/brokerd packages wire these together with TCP and
// WebSocket acceptors. Higher-level concerns (sessions, subscriptions,
// transactions, clustering) are deliberately out of scope and consume the
// interfaces these packages export.
package brokerkit
