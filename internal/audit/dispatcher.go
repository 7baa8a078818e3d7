package audit

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// droppedLogEvery samples the shed warning so a saturated till does not
// flood its own logs while it is already struggling.
const droppedLogEvery = 128

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of stalling the till operation
	// that emitted them when the buffer is full.
	DropIfFull bool
	Logger     zerolog.Logger
}

// Dispatcher forwards audit events to a sink from one background worker,
// so emitting from scan, login, and queue paths never waits on the sink.
// A nil *Dispatcher is valid and discards everything, which is how a
// device with auditing disabled runs.
type Dispatcher struct {
	sink  Sink
	queue chan Event
	stop  chan struct{}
	idle  chan struct{}
	shed  bool
	log   zerolog.Logger

	dropped atomic.Uint64
	closing atomic.Bool
	once    sync.Once
}

// NewDispatcher starts the worker. Returns nil when auditing is
// disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}

	d := &Dispatcher{
		sink:  sink,
		queue: make(chan Event, size),
		stop:  make(chan struct{}),
		idle:  make(chan struct{}),
		shed:  cfg.DropIfFull,
		log:   cfg.Logger,
	}
	go d.work()

	return d
}

// work is the single consumer. One worker keeps the device's audit trail
// in emission order.
func (d *Dispatcher) work() {
	defer close(d.idle)

	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain flushes whatever Close found still buffered. Every event
// accepted before Close reaches the sink; shutdown truncates nothing.
func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

// Emit hands one event to the worker. With DropIfFull set, a full buffer
// sheds the event and counts it; otherwise Emit waits for room, the
// context, or shutdown, whichever comes first.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closing.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.shed {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			n := d.dropped.Add(1)
			if n == 1 || n%droppedLogEvery == 0 {
				d.log.Warn().
					Uint64("dropped_total", n).
					Str("event_type", event.EventType).
					Str("device_id", event.DeviceID).
					Msg("audit buffer full, shedding events")
			}
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close stops intake, flushes buffered events, and waits for the worker
// to exit. Safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		<-d.idle
	})
}

// Dropped reports how many events were shed since construction.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
