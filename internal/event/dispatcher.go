package event

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultQueueSize bounds the dispatcher queue when no size is given.
const DefaultQueueSize = 256

// Dispatcher decouples event producers from slow sinks. Notify never
// blocks: events go onto a bounded queue and a single background goroutine
// delivers them, so file writes and UI updates cannot stall a supervisor
// operation. When the queue is full the event is dropped and counted.
type Dispatcher struct {
	sink   Sink
	logger *slog.Logger

	queue   chan Event
	stop    chan struct{}
	stopped chan struct{}

	closeOnce sync.Once
	dropped   atomic.Uint64
}

// NewDispatcher starts a dispatcher delivering to sink. A size <= 0 selects
// DefaultQueueSize.
func NewDispatcher(sink Sink, logger *slog.Logger, size int) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := &Dispatcher{
		sink:    sink,
		logger:  logger,
		queue:   make(chan Event, size),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify queues the event for delivery. Events offered while the queue is
// full, or after Close, are dropped.
func (d *Dispatcher) Notify(e Event) {
	select {
	case d.queue <- e:
	default:
		d.dropped.Add(1)
		d.logger.Warn("event queue full, dropping event",
			"type", string(e.Type), "program", e.ProgramID)
	}
}

// Dropped reports how many events were discarded because the queue was
// full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close drains the queue and stops the delivery goroutine. It is safe to
// call more than once.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.stop)
	})
	<-d.stopped
}

func (d *Dispatcher) run() {
	defer close(d.stopped)
	for {
		select {
		case e := <-d.queue:
			d.deliver(e)
		case <-d.stop:
			for {
				select {
				case e := <-d.queue:
					d.deliver(e)
				default:
					return
				}
			}
		}
	}
}

// deliver hands one event to the sink. A panicking sink loses that event
// and nothing else.
func (d *Dispatcher) deliver(e Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event sink panicked",
				"type", string(e.Type), "program", e.ProgramID, "panic", r)
		}
	}()
	d.sink.Notify(e)
}
