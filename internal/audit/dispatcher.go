package audit

import (
	"context"

	"github.com/swahilipot/hubauth/internal/async"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher asynchronously forwards events to a sink.
type Dispatcher struct {
	queue *async.Dispatcher[Event]
}

// NewDispatcher returns nil when auditing is disabled; a nil Dispatcher
// accepts and discards events.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	return &Dispatcher{
		queue: async.New(async.Config{BufferSize: cfg.BufferSize, DropIfFull: cfg.DropIfFull}, sink.Emit),
	}
}

func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	d.queue.Submit(ctx, event)
}

func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.queue.Close()
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.queue.Dropped()
}
