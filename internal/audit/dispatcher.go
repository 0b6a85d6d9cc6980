package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events under backpressure instead of stalling
	// the emitting flow.
	DropIfFull bool
}

// Dispatcher forwards events to a sink on its own goroutine. A nil
// *Dispatcher is valid and inert, so disabled audit costs nothing at the
// call sites.
type Dispatcher struct {
	sink    Sink
	events  chan Event
	drained chan struct{}
	drop    bool
	dropped atomic.Uint64

	// mu orders Emit's channel sends against Close closing the channel.
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	buf := cfg.BufferSize
	if buf <= 0 {
		buf = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:    sink,
		events:  make(chan Event, buf),
		drained: make(chan struct{}),
		drop:    cfg.DropIfFull,
	}
	go d.forward()
	return d
}

// forward runs until the event channel is closed, then signals that every
// buffered event reached the sink.
func (d *Dispatcher) forward() {
	for event := range d.events {
		d.sink.Emit(context.Background(), event)
	}
	close(d.drained)
}

// Emit enqueues an event. After Close, or on a nil dispatcher, it is a
// no-op.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.drop {
		select {
		case d.events <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.events <- event:
	case <-ctx.Done():
	}
}

// Close stops intake, waits for buffered events to reach the sink, and
// returns. Safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()
	<-d.drained
}

// Dropped reports events shed under backpressure.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
