// Package journal provides the sequential file layer underneath the broker's
// write-ahead journal: append-only files in a single directory, a factory
// that owns their lifecycle, and a timed buffer that coalesces small writes
// into batched flushes.
//
// # Write path
//
// Callers encode a record and hand it to SequentialFile.Write together with
// an optional completion callback. While a TimedBuffer is attached to the
// file (the currently active journal file), bytes and callbacks are queued
// in the buffer, which flushes when it fills up or when the flush timeout
// expires after the first queued write. Flushes and direct asynchronous
// writes are executed on the factory's single-threaded write executor, so
// completions for a file are dispatched in submission order.
//
// # Failure handling
//
// The factory holds one IOCriticalErrorListener. Every I/O failure surfaced
// by a write or flush is forwarded to it exactly once; the listener decides
// whether the broker survives. The factory never retries a failed write.
package journal
