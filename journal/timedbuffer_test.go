package journal

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingObserver captures flushes without touching the filesystem.
type recordingObserver struct {
	mu      sync.Mutex
	flushes [][]byte
	syncs   []bool
	cbs     [][]IOCallback
}

func (o *recordingObserver) FlushBuffer(data []byte, sync bool, callbacks []IOCallback) {
	o.mu.Lock()
	defer o.mu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	o.flushes = append(o.flushes, copied)
	o.syncs = append(o.syncs, sync)
	o.cbs = append(o.cbs, callbacks)
	for _, cb := range callbacks {
		cb.Done()
	}
}

func (o *recordingObserver) flushCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.flushes)
}

func TestFlushOnSizeThreshold(t *testing.T) {
	observer := &recordingObserver{}
	buffer := NewTimedBuffer(8, time.Hour, false)
	buffer.SetObserver(observer)
	buffer.Start()
	defer buffer.Stop()

	buffer.AddBytes([]byte("1234"), false, nil)
	assert.Equal(t, 0, observer.flushCount(), "below threshold, no flush")
	assert.Equal(t, 4, buffer.PendingBytes())

	buffer.AddBytes([]byte("5678"), false, nil)
	assert.Equal(t, 1, observer.flushCount(), "threshold reached, flush is immediate")
	assert.Equal(t, 0, buffer.PendingBytes())
	assert.Equal(t, []byte("12345678"), observer.flushes[0])
}

func TestFlushOnTimeout(t *testing.T) {
	observer := &recordingObserver{}
	buffer := NewTimedBuffer(1024, 20*time.Millisecond, false)
	buffer.SetObserver(observer)
	buffer.Start()
	defer buffer.Stop()

	buffer.AddBytes([]byte("small"), false, nil)
	assert.Equal(t, 0, observer.flushCount(), "no flush before timeout")

	require.Eventually(t, func() bool {
		return observer.flushCount() == 1
	}, time.Second, 5*time.Millisecond, "timeout flush never happened")
	assert.Equal(t, []byte("small"), observer.flushes[0])
}

func TestCallbacksDeliveredInSubmissionOrder(t *testing.T) {
	observer := &recordingObserver{}
	buffer := NewTimedBuffer(1024, time.Hour, false)
	buffer.SetObserver(observer)
	buffer.Start()
	defer buffer.Stop()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		buffer.AddBytes([]byte("x"), false, callbackFunc(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}

	buffer.Flush()

	require.Len(t, order, 10)
	for i, n := range order {
		assert.Equal(t, i, n)
	}
}

func TestSyncFlagSticksUntilFlush(t *testing.T) {
	observer := &recordingObserver{}
	buffer := NewTimedBuffer(1024, time.Hour, false)
	buffer.SetObserver(observer)
	buffer.Start()
	defer buffer.Stop()

	buffer.AddBytes([]byte("a"), true, nil)
	buffer.AddBytes([]byte("b"), false, nil)
	buffer.Flush()

	require.Equal(t, 1, observer.flushCount())
	assert.True(t, observer.syncs[0], "any queued sync write makes the flush sync")
}

func TestStopFlushesPending(t *testing.T) {
	observer := &recordingObserver{}
	buffer := NewTimedBuffer(1024, time.Hour, false)
	buffer.SetObserver(observer)
	buffer.Start()

	buffer.AddBytes([]byte("pending"), false, nil)
	buffer.Stop()

	require.Equal(t, 1, observer.flushCount())
	assert.Equal(t, []byte("pending"), observer.flushes[0])

	buffer.Stop() // no-op
}

func TestDeactivateBufferFlushesBeforeDetach(t *testing.T) {
	listener := &capturingListener{}
	factory := newTestFactory(t,
		WithTimedBuffer(1024*1024, time.Hour),
		WithCriticalErrorListener(listener))

	file := factory.CreateSequentialFile("journal-1.dat")
	require.NoError(t, file.Open())
	factory.ActivateBuffer(file)

	callback := NewWaitCallback()
	require.NoError(t, file.Write([]byte("buffered-record"), true, callback))

	// The write is still coalescing in the buffer; no I/O error reported
	assert.Equal(t, 0, listener.count())

	factory.DeactivateBuffer()
	require.NoError(t, callback.Wait())

	content, err := os.ReadFile(filepath.Join(factory.Directory(), "journal-1.dat"))
	require.NoError(t, err)
	assert.Equal(t, "buffered-record", string(content))
}

func TestBufferedWritesCoalesce(t *testing.T) {
	factory := newTestFactory(t, WithTimedBuffer(1024*1024, time.Hour))

	file := factory.CreateSequentialFile("journal-1.dat")
	require.NoError(t, file.Open())
	factory.ActivateBuffer(file)

	first := NewWaitCallback()
	second := NewWaitCallback()
	require.NoError(t, file.Write([]byte("one|"), false, first))
	require.NoError(t, file.Write([]byte("two"), false, second))

	factory.Flush()
	require.NoError(t, first.Wait())
	require.NoError(t, second.Wait())

	content, err := os.ReadFile(filepath.Join(factory.Directory(), "journal-1.dat"))
	require.NoError(t, err)
	assert.Equal(t, "one|two", string(content), "coalesced writes land in submission order")
}
