package journal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/c360/brokerkit/errors"
)

// SequentialFile is one append-only file owned by a factory.
type SequentialFile interface {
	// FileName returns the file's name within the journal directory.
	FileName() string

	// Open opens (creating if needed) the underlying file.
	Open() error

	// IsOpen reports whether the file is currently open.
	IsOpen() bool

	// Fill preallocates the file to the given size.
	Fill(size int64) error

	// Write appends bytes. With a TimedBuffer attached, the bytes and
	// callback are queued for a coalesced flush; otherwise a nil
	// callback writes synchronously and a non-nil callback schedules
	// the write on the factory's write executor.
	Write(data []byte, sync bool, callback IOCallback) error

	// Sync flushes the file's contents to storage.
	Sync() error

	// Position returns the current write offset.
	Position() (int64, error)

	// Close detaches any timed buffer and closes the file. Pending
	// buffered bytes are flushed first.
	Close() error

	// Delete removes the file from the directory.
	Delete() error

	// Rename renames the file within the directory.
	Rename(newName string) error

	// SetTimedBuffer attaches the write coalescer, or detaches it when
	// nil. Attaching registers the file as the buffer's observer.
	SetTimedBuffer(buffer *TimedBuffer)
}

// nioSequentialFile is the file-backed implementation used by the NIO
// factory.
type nioSequentialFile struct {
	mu sync.Mutex

	factory  *NIOSequentialFileFactory
	dir      string
	fileName string

	file        *os.File
	timedBuffer *TimedBuffer
}

func newNIOSequentialFile(factory *NIOSequentialFileFactory, dir, fileName string) *nioSequentialFile {
	return &nioSequentialFile{
		factory:  factory,
		dir:      dir,
		fileName: fileName,
	}
}

// FileName returns the file's name within the journal directory.
func (f *nioSequentialFile) FileName() string {
	return f.fileName
}

func (f *nioSequentialFile) path() string {
	return filepath.Join(f.dir, f.fileName)
}

// Open opens the underlying file for appending.
func (f *nioSequentialFile) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file != nil {
		return nil
	}

	file, err := os.OpenFile(f.path(), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return errors.Wrap(err, "SequentialFile", "Open", "opening "+f.fileName)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		_ = file.Close()
		return errors.Wrap(err, "SequentialFile", "Open", "seeking to end of "+f.fileName)
	}
	f.file = file
	return nil
}

// IsOpen reports whether the file is currently open.
func (f *nioSequentialFile) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file != nil
}

// Fill preallocates the file to the given size.
func (f *nioSequentialFile) Fill(size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return errors.ErrFileNotOpen
	}
	if err := f.file.Truncate(size); err != nil {
		return errors.Wrap(err, "SequentialFile", "Fill", "preallocating "+f.fileName)
	}
	if err := f.file.Sync(); err != nil {
		return errors.Wrap(err, "SequentialFile", "Fill", "syncing "+f.fileName)
	}
	return nil
}

// Write appends bytes through the timed buffer when attached, otherwise
// directly or via the write executor.
func (f *nioSequentialFile) Write(data []byte, sync bool, callback IOCallback) error {
	f.mu.Lock()
	buffer := f.timedBuffer
	f.mu.Unlock()

	if buffer != nil {
		buffer.AddBytes(data, sync, callback)
		return nil
	}

	if callback == nil {
		return f.doWrite(data, sync, nil)
	}

	return f.factory.scheduleWrite(func() {
		_ = f.doWrite(data, sync, []IOCallback{callback})
	})
}

// FlushBuffer implements TimedBufferObserver: a buffer flush becomes one
// batched write on the factory's write executor.
func (f *nioSequentialFile) FlushBuffer(data []byte, sync bool, callbacks []IOCallback) {
	err := f.factory.scheduleWrite(func() {
		_ = f.doWrite(data, sync, callbacks)
	})
	if err != nil {
		f.failCallbacks(callbacks, err, "scheduling buffer flush")
		f.factory.OnIOError(err, "cannot schedule buffer flush", f)
	}
}

// doWrite performs the physical write, then dispatches callbacks in
// submission order. Failures go to the callbacks and the factory's critical
// error path.
func (f *nioSequentialFile) doWrite(data []byte, sync bool, callbacks []IOCallback) error {
	f.mu.Lock()
	file := f.file
	f.mu.Unlock()

	var err error
	if file == nil {
		err = errors.ErrFileClosed
	} else {
		_, err = file.Write(data)
		if err == nil && sync {
			err = file.Sync()
		}
	}

	if err != nil {
		message := fmt.Sprintf("failed to write %d bytes to %s", len(data), f.fileName)
		f.factory.OnIOError(err, message, f)
		f.failCallbacks(callbacks, err, message)
		return errors.Wrap(err, "SequentialFile", "Write", "writing to "+f.fileName)
	}

	for _, callback := range callbacks {
		callback.Done()
	}
	return nil
}

func (f *nioSequentialFile) failCallbacks(callbacks []IOCallback, err error, message string) {
	for _, callback := range callbacks {
		callback.OnError(err, message)
	}
}

// Sync flushes file contents to storage.
func (f *nioSequentialFile) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return errors.ErrFileNotOpen
	}
	if err := f.file.Sync(); err != nil {
		return errors.Wrap(err, "SequentialFile", "Sync", "syncing "+f.fileName)
	}
	return nil
}

// Position returns the current write offset.
func (f *nioSequentialFile) Position() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return 0, errors.ErrFileNotOpen
	}
	pos, err := f.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, errors.Wrap(err, "SequentialFile", "Position", "querying offset of "+f.fileName)
	}
	return pos, nil
}

// Close flushes any attached buffer, detaches it, and closes the file.
func (f *nioSequentialFile) Close() error {
	f.mu.Lock()
	buffer := f.timedBuffer
	f.mu.Unlock()

	if buffer != nil {
		buffer.Flush()
		buffer.SetObserver(nil)
		// The flush only schedules the write; wait for the single-threaded
		// executor to reach it before the file is closed.
		drained := make(chan struct{})
		if err := f.factory.scheduleWrite(func() { close(drained) }); err == nil {
			<-drained
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.timedBuffer = nil
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	if err != nil {
		return errors.Wrap(err, "SequentialFile", "Close", "closing "+f.fileName)
	}
	return nil
}

// Delete removes the file from the journal directory.
func (f *nioSequentialFile) Delete() error {
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Remove(f.path()); err != nil {
		return errors.Wrap(err, "SequentialFile", "Delete", "removing "+f.fileName)
	}
	return nil
}

// Rename renames the file within the journal directory.
func (f *nioSequentialFile) Rename(newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	newPath := filepath.Join(f.dir, newName)
	if err := os.Rename(f.path(), newPath); err != nil {
		return errors.Wrap(err, "SequentialFile", "Rename", "renaming "+f.fileName)
	}
	f.fileName = newName
	return nil
}

// SetTimedBuffer attaches or detaches the write coalescer.
func (f *nioSequentialFile) SetTimedBuffer(buffer *TimedBuffer) {
	f.mu.Lock()
	f.timedBuffer = buffer
	f.mu.Unlock()

	if buffer != nil {
		buffer.SetObserver(f)
	}
}
