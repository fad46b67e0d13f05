package journal

import (
	"log/slog"
	"sync"
	"time"

	"github.com/c360/brokerkit/metric"
)

// TimedBufferObserver receives the coalesced bytes of a flush. The active
// sequential file implements it; flushes are not observed while no file is
// attached.
type TimedBufferObserver interface {
	FlushBuffer(data []byte, sync bool, callbacks []IOCallback)
}

// TimedBuffer coalesces journal writes for the currently active file. It
// flushes when the pending bytes reach the configured size or when the
// flush timeout has elapsed since the first queued write, whichever comes
// first.
type TimedBuffer struct {
	mu sync.Mutex

	pending     []byte
	callbacks   []IOCallback
	pendingSync bool
	deadline    time.Time

	bufferSize int
	timeout    time.Duration
	observer   TimedBufferObserver

	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	logRates   bool
	flushed    int64
	rateStart  time.Time
	logger     *slog.Logger
	coreMetric *metric.Metrics
}

// NewTimedBuffer creates a timed buffer flushing at bufferSize bytes or
// after timeout, whichever is reached first.
func NewTimedBuffer(bufferSize int, timeout time.Duration, logRates bool) *TimedBuffer {
	return &TimedBuffer{
		bufferSize: bufferSize,
		timeout:    timeout,
		logRates:   logRates,
		logger:     slog.Default().With("component", "journal"),
	}
}

// setLogger replaces the default logger. Factory-injected.
func (t *TimedBuffer) setLogger(logger *slog.Logger) {
	t.logger = logger
}

// setMetrics wires flush counters into the platform metrics.
func (t *TimedBuffer) setMetrics(m *metric.Metrics) {
	t.coreMetric = m
}

// Start launches the flush timer. Starting a started buffer is a no-op.
func (t *TimedBuffer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return
	}
	t.started = true
	t.stopCh = make(chan struct{})
	t.rateStart = time.Now()

	t.wg.Add(1)
	go t.timerLoop(t.stopCh)
}

// Stop flushes pending bytes and stops the timer. Stopping a stopped
// buffer is a no-op.
func (t *TimedBuffer) Stop() {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return
	}
	t.started = false
	t.flushLocked()
	close(t.stopCh)
	t.mu.Unlock()

	t.wg.Wait()
}

// SetObserver attaches the observer receiving flushes, or detaches it when
// nil. Pending bytes must be flushed before detaching; see
// SequentialFileFactory.DeactivateBuffer.
func (t *TimedBuffer) SetObserver(observer TimedBufferObserver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observer = observer
}

// AddBytes queues bytes and an optional completion callback. The buffer
// flushes inline when the pending bytes reach the configured size.
func (t *TimedBuffer) AddBytes(data []byte, sync bool, callback IOCallback) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.pending) == 0 {
		t.deadline = time.Now().Add(t.timeout)
	}

	t.pending = append(t.pending, data...)
	if callback != nil {
		t.callbacks = append(t.callbacks, callback)
	}
	if sync {
		t.pendingSync = true
	}

	if len(t.pending) >= t.bufferSize {
		t.flushLocked()
	}
}

// Flush forces out any pending bytes regardless of size or timer.
func (t *TimedBuffer) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flushLocked()
}

// PendingBytes reports the number of bytes waiting for a flush.
func (t *TimedBuffer) PendingBytes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// flushLocked hands the pending bytes to the observer. Caller holds the
// lock; the observer only schedules the write on the factory's executor, so
// holding it keeps flushes ordered without stalling the timer.
func (t *TimedBuffer) flushLocked() {
	if len(t.pending) == 0 || t.observer == nil {
		return
	}

	data := t.pending
	callbacks := t.callbacks
	sync := t.pendingSync

	t.pending = nil
	t.callbacks = nil
	t.pendingSync = false

	t.flushed += int64(len(data))
	if t.coreMetric != nil {
		t.coreMetric.JournalFlushes.Inc()
		t.coreMetric.JournalBytesWritten.Add(float64(len(data)))
	}

	t.observer.FlushBuffer(data, sync, callbacks)
}

// timerLoop fires timeout-based flushes and, when enabled, logs write rates
// once per second.
func (t *TimedBuffer) timerLoop(stopCh chan struct{}) {
	defer t.wg.Done()

	interval := t.timeout / 4
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var rateTicker *time.Ticker
	var rateC <-chan time.Time
	if t.logRates {
		rateTicker = time.NewTicker(time.Second)
		rateC = rateTicker.C
		defer rateTicker.Stop()
	}

	for {
		select {
		case <-stopCh:
			return

		case now := <-ticker.C:
			t.mu.Lock()
			if len(t.pending) > 0 && !now.Before(t.deadline) {
				t.flushLocked()
			}
			t.mu.Unlock()

		case <-rateC:
			t.logRate()
		}
	}
}

// logRate reports bytes-per-second throughput since the last report.
func (t *TimedBuffer) logRate() {
	t.mu.Lock()
	flushed := t.flushed
	elapsed := time.Since(t.rateStart)
	t.flushed = 0
	t.rateStart = time.Now()
	t.mu.Unlock()

	if elapsed <= 0 {
		return
	}
	rate := float64(flushed) / elapsed.Seconds()
	t.logger.Info("journal write rate", "bytes_per_second", rate)
	if t.coreMetric != nil {
		t.coreMetric.JournalWriteRate.Set(rate)
	}
}
