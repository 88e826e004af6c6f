package sink

import (
	"log/slog"
	"sync"
	"time"
)

const (
	defaultQueueSize    = 1024
	defaultDrainTimeout = 5 * time.Second
)

// AsyncOption configures an Async wrapper.
type AsyncOption func(*Async)

// WithQueueSize sets the queue capacity. Default: 1024.
func WithQueueSize(n int) AsyncOption {
	return func(a *Async) { a.queueSize = n }
}

// WithOnDrop sets a callback invoked when an entry is dropped because the
// queue is full.
func WithOnDrop(f func()) AsyncOption {
	return func(a *Async) { a.onDrop = f }
}

// Async decouples the ingestion pipeline from a slow destination with a
// bounded queue drained by a background goroutine. When the queue is full the
// entry is dropped with a warning rather than blocking a producer; inner
// write errors are logged, never propagated back to the pipeline.
type Async struct {
	inner     Sink
	logger    *slog.Logger
	ch        chan Entry
	done      chan struct{}
	queueSize int
	onDrop    func()

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewAsync wraps inner in an async queue. The drain goroutine starts
// immediately.
func NewAsync(inner Sink, logger *slog.Logger, opts ...AsyncOption) *Async {
	a := &Async{
		inner:     inner,
		logger:    logger,
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ch = make(chan Entry, a.queueSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Write queues the entry. Never blocks: a full queue drops the entry, and a
// write after Close is discarded rather than delivered.
func (a *Async) Write(e Entry) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil
	}

	select {
	case a.ch <- e:
	default:
		a.logger.Warn("Sink queue full, dropping entry",
			slog.String("source", e.Source),
		)
		if a.onDrop != nil {
			a.onDrop()
		}
	}
	return nil
}

// Close stops accepting entries, drains what is already queued (bounded by a
// timeout), then closes the inner sink. An entry handed to the inner sink is
// always written completely before shutdown proceeds.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()
		close(a.ch)
		select {
		case <-a.done:
		case <-time.After(defaultDrainTimeout):
			a.logger.Warn("Sink drain timed out")
		}
		err = a.inner.Close()
	})
	return err
}

func (a *Async) drain() {
	defer close(a.done)
	for e := range a.ch {
		if err := a.inner.Write(e); err != nil {
			a.logger.Warn("Sink write failed",
				slog.String("source", e.Source),
				slog.String("error", err.Error()),
			)
		}
	}
}
