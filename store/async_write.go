package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Async writer defaults.
const (
	DefaultChannelCapacity = 256
	DefaultDrainTimeout    = 30 * time.Second
)

// WriteHandler persists one record. Errors are logged and counted by the
// writer.
type WriteHandler func(ctx context.Context, rec DetectionRecord) error

// AsyncWriter takes detection writes off the pipeline thread: Write queues
// into a buffered channel and a background goroutine persists the records.
// Stop drains whatever is still queued.
type AsyncWriter struct {
	writeChan chan DetectionRecord
	handler   WriteHandler
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool

	written atomic.Uint64
	failed  atomic.Uint64
}

// NewAsyncWriter creates a writer with room for capacity pending records.
func NewAsyncWriter(handler WriteHandler, capacity int, logger *zap.Logger) *AsyncWriter {
	if capacity < 1 {
		capacity = DefaultChannelCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &AsyncWriter{
		writeChan: make(chan DetectionRecord, capacity),
		handler:   handler,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the background goroutine. Calling it twice is a no-op.
func (w *AsyncWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.processWrites()
}

func (w *AsyncWriter) processWrites() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case rec := <-w.writeChan:
			w.handle(rec)
		}
	}
}

func (w *AsyncWriter) drain() {
	for {
		select {
		case rec := <-w.writeChan:
			w.handle(rec)
		default:
			return
		}
	}
}

func (w *AsyncWriter) handle(rec DetectionRecord) {
	// The writer's own context is already cancelled while draining.
	if err := w.handler(context.Background(), rec); err != nil {
		w.failed.Add(1)
		w.logger.Error("Failed to store detection",
			zap.String("run_id", rec.RunID),
			zap.Uint32("frame_id", rec.FrameID),
			zap.Error(err))
		return
	}
	w.written.Add(1)
}

// Write queues rec without blocking. It returns false when the buffer is
// full or the writer is stopped.
func (w *AsyncWriter) Write(rec DetectionRecord) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return false
	}
	select {
	case w.writeChan <- rec:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued records.
func (w *AsyncWriter) Pending() int {
	return len(w.writeChan)
}

// Written returns how many records were persisted.
func (w *AsyncWriter) Written() uint64 {
	return w.written.Load()
}

// Failed returns how many records the handler rejected.
func (w *AsyncWriter) Failed() uint64 {
	return w.failed.Load()
}

// Stop rejects further writes, drains the queue and waits for the
// background goroutine, giving up after timeout. It reports whether the
// drain finished in time.
func (w *AsyncWriter) Stop(timeout time.Duration) bool {
	w.mu.Lock()
	w.stopped = true
	started := w.started
	w.mu.Unlock()

	w.cancel()
	if !started {
		w.drain()
		return true
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
