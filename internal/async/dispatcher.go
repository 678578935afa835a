// Package async provides a bounded single-consumer work queue used for
// fire-and-forget side effects (audit events, outbound mail).
package async

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls buffering. With DropIfFull, Submit never blocks and counts
// rejected items instead.
type Config struct {
	BufferSize int
	DropIfFull bool
}

// Dispatcher hands items to a handler on one background goroutine.
type Dispatcher[T any] struct {
	cfg       Config
	handle    func(context.Context, T)
	ch        chan T
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// New starts the consumer goroutine.
func New[T any](cfg Config, handle func(context.Context, T)) *Dispatcher[T] {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	d := &Dispatcher[T]{
		cfg:    cfg,
		handle: handle,
		ch:     make(chan T, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher[T]) run() {
	defer d.wg.Done()

	for {
		select {
		case item := <-d.ch:
			d.handle(context.Background(), item)
		case <-d.done:
			for {
				select {
				case item := <-d.ch:
					d.handle(context.Background(), item)
				default:
					return
				}
			}
		}
	}
}

// Submit enqueues item and reports whether it was accepted.
func (d *Dispatcher[T]) Submit(ctx context.Context, item T) bool {
	if d == nil || d.closed.Load() {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- item:
			return true
		case <-d.done:
			return false
		default:
			d.dropped.Add(1)
			return false
		}
	}

	select {
	case d.ch <- item:
		return true
	case <-ctx.Done():
		return false
	case <-d.done:
		return false
	}
}

// Close stops accepting items and drains the buffer before returning.
func (d *Dispatcher[T]) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns the number of items rejected because the buffer was full.
func (d *Dispatcher[T]) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
