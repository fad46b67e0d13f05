package journal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/c360/brokerkit/errors"
	"github.com/c360/brokerkit/metric"
	"github.com/c360/brokerkit/pkg/worker"
)

// executorTimeout bounds the wait for the write executor to drain on stop.
const executorTimeout = 60 * time.Second

// writeQueueSize bounds the number of writes waiting on the executor.
const writeQueueSize = 4096

// SequentialFileFactory owns a directory of append-only journal files.
type SequentialFileFactory interface {
	// Directory returns the journal directory path.
	Directory() string

	// CreateSequentialFile materializes a handle for fileName inside the
	// journal directory. The file is not opened.
	CreateSequentialFile(fileName string) SequentialFile

	// ListFiles returns the names of directory entries ending in
	// ".<extension>".
	ListFiles(extension string) ([]string, error)

	// CreateDirs creates the journal directory and missing parents.
	CreateDirs() error

	// ActivateBuffer attaches the timed buffer to file, making it the
	// coalescing target for subsequent writes.
	ActivateBuffer(file SequentialFile)

	// DeactivateBuffer flushes pending bytes and detaches the buffer
	// from the currently active file.
	DeactivateBuffer()

	// Flush forces out any bytes pending in the timed buffer.
	Flush()

	// SupportsCallbacks reports whether writes may carry completion
	// callbacks.
	SupportsCallbacks() bool

	// OnIOError forwards an I/O error to the critical-error listener.
	OnIOError(err error, message string, file SequentialFile)

	// Start brings up the timed buffer and write executor.
	Start() error

	// Stop flushes, stops the timed buffer, and drains the write
	// executor within a bounded timeout.
	Stop() error
}

// Option configures a factory.
type Option func(*NIOSequentialFileFactory)

// WithTimedBuffer enables write coalescing with the given buffer size and
// flush timeout.
func WithTimedBuffer(bufferSize int, timeout time.Duration) Option {
	return func(f *NIOSequentialFileFactory) {
		f.bufferSize = bufferSize
		f.bufferTimeout = timeout
		f.buffered = true
	}
}

// WithLogRates enables periodic write-throughput logging.
func WithLogRates(logRates bool) Option {
	return func(f *NIOSequentialFileFactory) {
		f.logRates = logRates
	}
}

// WithCriticalErrorListener installs the sink for unrecoverable I/O errors.
func WithCriticalErrorListener(listener IOCriticalErrorListener) Option {
	return func(f *NIOSequentialFileFactory) {
		f.criticalErrorListener = listener
	}
}

// WithLogger sets the factory logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *NIOSequentialFileFactory) {
		f.logger = logger.With("component", "journal")
	}
}

// WithMetricsRegistry wires journal counters into the platform metrics.
func WithMetricsRegistry(registry *metric.MetricsRegistry) Option {
	return func(f *NIOSequentialFileFactory) {
		f.metrics = registry.CoreMetrics()
	}
}

// NIOSequentialFileFactory is the os.File-backed factory. Asynchronous
// writes and buffer flushes run on a single-threaded write executor so
// completions for a file are dispatched in submission order.
type NIOSequentialFileFactory struct {
	dir string

	buffered      bool
	bufferSize    int
	bufferTimeout time.Duration
	logRates      bool

	timedBuffer           *TimedBuffer
	criticalErrorListener IOCriticalErrorListener
	logger                *slog.Logger
	metrics               *metric.Metrics

	lifecycleMu sync.Mutex
	started     bool

	// execMu guards writeExecutor separately from lifecycleMu: stopping
	// the timed buffer flushes through scheduleWrite, which must not
	// re-enter the lifecycle lock.
	execMu        sync.Mutex
	writeExecutor *worker.Pool[func()]
}

// NewNIOFactory creates a factory over the given journal directory.
func NewNIOFactory(dir string, opts ...Option) *NIOSequentialFileFactory {
	f := &NIOSequentialFileFactory{
		dir:    dir,
		logger: slog.Default().With("component", "journal"),
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.buffered {
		f.timedBuffer = NewTimedBuffer(f.bufferSize, f.bufferTimeout, f.logRates)
		f.timedBuffer.setLogger(f.logger)
		if f.metrics != nil {
			f.timedBuffer.setMetrics(f.metrics)
		}
	}

	return f
}

// Directory returns the journal directory path.
func (f *NIOSequentialFileFactory) Directory() string {
	return f.dir
}

// CreateSequentialFile materializes a handle for fileName.
func (f *NIOSequentialFileFactory) CreateSequentialFile(fileName string) SequentialFile {
	return newNIOSequentialFile(f, f.dir, fileName)
}

// ListFiles returns directory entries ending in ".<extension>".
func (f *NIOSequentialFileFactory) ListFiles(extension string) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDirectoryList, "NIOFactory", "ListFiles", f.dir+": "+err.Error())
	}

	suffix := "." + extension
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// CreateDirs creates the journal directory and any missing parents.
func (f *NIOSequentialFileFactory) CreateDirs() error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrDirectoryCreate, "NIOFactory", "CreateDirs", f.dir+": "+err.Error())
	}
	return nil
}

// ActivateBuffer attaches the timed buffer to file.
func (f *NIOSequentialFileFactory) ActivateBuffer(file SequentialFile) {
	if f.timedBuffer != nil {
		file.SetTimedBuffer(f.timedBuffer)
	}
}

// DeactivateBuffer flushes pending bytes and detaches the buffer. Pending
// bytes always reach the old file before the observer switches.
func (f *NIOSequentialFileFactory) DeactivateBuffer() {
	if f.timedBuffer != nil {
		f.timedBuffer.Flush()
		f.timedBuffer.SetObserver(nil)
	}
}

// Flush forces out any bytes pending in the timed buffer.
func (f *NIOSequentialFileFactory) Flush() {
	if f.timedBuffer != nil {
		f.timedBuffer.Flush()
	}
}

// SupportsCallbacks reports whether writes may carry completion callbacks.
func (f *NIOSequentialFileFactory) SupportsCallbacks() bool {
	return true
}

// OnIOError forwards an I/O error to the critical-error listener, if any.
func (f *NIOSequentialFileFactory) OnIOError(err error, message string, file SequentialFile) {
	if f.metrics != nil {
		f.metrics.ErrorsTotal.WithLabelValues("journal", errors.Classify(err).String()).Inc()
	}
	if f.criticalErrorListener != nil {
		f.criticalErrorListener.OnIOError(err, message, file)
	}
}

// Start brings up the timed buffer and the write executor. Starting a
// started factory is a no-op.
func (f *NIOSequentialFileFactory) Start() error {
	f.lifecycleMu.Lock()
	defer f.lifecycleMu.Unlock()

	if f.started {
		return nil
	}

	if f.timedBuffer != nil {
		f.timedBuffer.Start()
	}

	executor, err := worker.NewPool(1, writeQueueSize, func(_ context.Context, task func()) error {
		task()
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "NIOFactory", "Start", "creating write executor")
	}
	if err := executor.Start(context.Background()); err != nil {
		return errors.Wrap(err, "NIOFactory", "Start", "starting write executor")
	}

	f.execMu.Lock()
	f.writeExecutor = executor
	f.execMu.Unlock()
	f.started = true
	return nil
}

// Stop stops the timed buffer and drains the write executor, waiting up to
// executorTimeout. Overrunning the timeout is logged, not fatal. Stopping a
// stopped factory is a no-op.
func (f *NIOSequentialFileFactory) Stop() error {
	f.lifecycleMu.Lock()
	defer f.lifecycleMu.Unlock()

	if !f.started {
		return nil
	}

	if f.timedBuffer != nil {
		f.timedBuffer.Stop()
	}

	f.execMu.Lock()
	executor := f.writeExecutor
	f.writeExecutor = nil
	f.execMu.Unlock()

	if executor != nil {
		if err := executor.Stop(executorTimeout); err != nil {
			f.logger.Warn("timed out waiting for journal writer shutdown", "error", err)
		}
	}

	f.started = false
	return nil
}

// scheduleWrite submits a write task to the single-threaded executor.
func (f *NIOSequentialFileFactory) scheduleWrite(task func()) error {
	f.execMu.Lock()
	executor := f.writeExecutor
	f.execMu.Unlock()

	if executor == nil {
		return errors.Wrap(errors.ErrNotStarted, "NIOFactory", "scheduleWrite", "submitting write")
	}
	if err := executor.Submit(task); err != nil {
		return errors.Wrap(err, "NIOFactory", "scheduleWrite", "submitting write")
	}
	return nil
}

// FileName builds the conventional journal file name prefix-id.extension.
func FileName(prefix string, id int64, extension string) string {
	return fmt.Sprintf("%s-%d.%s", prefix, id, extension)
}
