package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"auth-session-engine/internal/audit/domain"
)

// Sink delivers one event to a destination (log line, Kafka topic, table).
type Sink interface {
	Write(ctx context.Context, e domain.Event) error
}

// Dispatcher buffers events on a channel and fans them out to sinks from a
// single worker goroutine. A full buffer drops the event and counts it;
// emitting never blocks a login or refresh on a slow sink.
type Dispatcher struct {
	sinks     []Sink
	ch        chan domain.Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
	logger    *zap.Logger
}

// NewDispatcher returns a running Dispatcher with the given buffer capacity
// and sinks. Call Close on shutdown to drain the buffer.
func NewDispatcher(bufferSize int, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		sinks:  sinks,
		ch:     make(chan domain.Event, bufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Record queues the event, filling ID and OccurredAt when left zero. Drops
// the event if the buffer is full or the dispatcher is closed.
func (d *Dispatcher) Record(ctx context.Context, e domain.Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	select {
	case d.ch <- e:
	case <-d.done:
	default:
		d.dropped.Add(1)
	}
}

// Dropped reports how many events were lost to a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Close stops accepting events, drains the buffer through the sinks, and
// waits for the worker to exit. Safe to call multiple times.
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

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case e := <-d.ch:
			d.deliver(e)
		case <-d.done:
			for {
				select {
				case e := <-d.ch:
					d.deliver(e)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(e domain.Event) {
	for _, s := range d.sinks {
		if err := s.Write(context.Background(), e); err != nil {
			d.logger.Warn("audit sink write failed",
				zap.String("action", e.Action),
				zap.String("event_id", e.ID),
				zap.Error(err))
		}
	}
}
