package audit

import (
	"context"
	"log/slog"
	"math/bits"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the caller when the
	// buffer is full.
	DropIfFull bool
	Logger     *slog.Logger
}

// Dispatcher asynchronously forwards audit events to a sink from a single
// worker goroutine.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	logger    *slog.Logger
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	delivered atomic.Uint64
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the worker. It returns nil when cfg is disabled; a
// nil Dispatcher accepts and discards every call.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		logger: logger.With("component", "audit_dispatcher"),
		ch:     make(chan Event, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	d.sink.Emit(context.Background(), event)
	d.delivered.Add(1)
}

// Emit queues event. With DropIfFull it never blocks; otherwise it waits for
// buffer space, ctx, or Close.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.drop(event)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

// drop logs on the 1st, 2nd, 4th, 8th... dropped event.
func (d *Dispatcher) drop(event Event) {
	n := d.dropped.Add(1)
	if bits.OnesCount64(n) == 1 {
		d.logger.Warn("audit buffer full, dropping events", "dropped_total", n, "event_type", event.EventType)
	}
}

// Close stops accepting events, drains the buffer and waits for the worker.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
