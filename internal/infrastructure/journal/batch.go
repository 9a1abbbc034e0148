package journal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotRunning = errors.New("batch buffer is not running")
	ErrStopped    = errors.New("batch buffer is stopped")
)

// BatchConfig controls batching thresholds.
type BatchConfig struct {
	Size    int
	Timeout time.Duration
}

// batchBuffer collects items into batches of Size, or whatever arrived within
// Timeout of the first item, and hands them to a single writer goroutine.
// Producers never wait for the store.
type batchBuffer[T any] struct {
	cfg     BatchConfig
	flushFn func(context.Context, []T) error
	logger  *logrus.Entry

	mu      sync.Mutex
	ctx     context.Context
	items   []T
	pending [][]T
	timer   *time.Timer
	stopped bool

	wake     chan struct{}
	done     chan struct{}
	finalErr error
}

func newBatchBuffer[T any](cfg BatchConfig, flushFn func(context.Context, []T) error, logger *logrus.Entry) *batchBuffer[T] {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}
	return &batchBuffer[T]{
		cfg:     cfg,
		flushFn: flushFn,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// start launches the writer. Flushes use ctx until stop replaces it.
func (bb *batchBuffer[T]) start(ctx context.Context) {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	if bb.ctx != nil || bb.stopped {
		return
	}
	bb.ctx = ctx
	go bb.writeLoop()
}

func (bb *batchBuffer[T]) enqueue(item T) error {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	switch {
	case bb.stopped:
		return ErrStopped
	case bb.ctx == nil:
		return ErrNotRunning
	}
	if err := bb.ctx.Err(); err != nil {
		return err
	}

	bb.items = append(bb.items, item)
	if len(bb.items) >= bb.cfg.Size {
		bb.sealLocked()
	} else if bb.timer == nil && bb.cfg.Timeout > 0 {
		bb.timer = time.AfterFunc(bb.cfg.Timeout, bb.sealOnTimeout)
	}
	return nil
}

func (bb *batchBuffer[T]) sealOnTimeout() {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	if !bb.stopped {
		bb.sealLocked()
	}
}

// sealLocked moves the buffered items to the writer queue.
func (bb *batchBuffer[T]) sealLocked() {
	if bb.timer != nil {
		bb.timer.Stop()
		bb.timer = nil
	}
	if len(bb.items) == 0 {
		return
	}
	batch := make([]T, len(bb.items))
	copy(batch, bb.items)
	bb.items = bb.items[:0]
	bb.pending = append(bb.pending, batch)

	select {
	case bb.wake <- struct{}{}:
	default:
	}
}

func (bb *batchBuffer[T]) writeLoop() {
	defer close(bb.done)
	for range bb.wake {
		bb.flushPending()
	}
	bb.finalErr = bb.flushPending()
}

// flushPending writes queued batches in order. While running, a cancelled
// base context leaves them for stop.
func (bb *batchBuffer[T]) flushPending() error {
	var errs []error
	for {
		bb.mu.Lock()
		if len(bb.pending) == 0 || (!bb.stopped && bb.ctx.Err() != nil) {
			bb.mu.Unlock()
			return errors.Join(errs...)
		}
		batch := bb.pending[0]
		bb.pending[0] = nil
		bb.pending = bb.pending[1:]
		ctx := bb.ctx
		bb.mu.Unlock()

		start := time.Now()
		if err := bb.flushFn(ctx, batch); err != nil {
			bb.logger.WithError(err).WithField("size", len(batch)).Warn("batch flush failed")
			errs = append(errs, err)
			continue
		}
		bb.logger.WithFields(logrus.Fields{
			"size":    len(batch),
			"took_ms": time.Since(start).Milliseconds(),
		}).Debug("flushed batch")
	}
}

// stop seals the remaining items and waits until the writer has flushed
// everything with ctx, or ctx is done.
func (bb *batchBuffer[T]) stop(ctx context.Context) error {
	bb.mu.Lock()
	if bb.stopped {
		bb.mu.Unlock()
		return nil
	}
	running := bb.ctx != nil
	bb.stopped = true
	bb.ctx = ctx
	bb.sealLocked()
	close(bb.wake)
	bb.mu.Unlock()

	if !running {
		go bb.writeLoop()
	}
	select {
	case <-bb.done:
		return bb.finalErr
	case <-ctx.Done():
		return ctx.Err()
	}
}
