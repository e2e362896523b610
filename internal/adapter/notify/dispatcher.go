package notify

import (
	"context"
	"sync"
	"time"

	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/metrics"
	"github.com/olyamironova/escrow-engine/internal/port"
	"go.uber.org/zap"
)

var _ port.Notifier = (*Dispatcher)(nil)

// Dispatcher decouples the engine from event delivery. Notify never blocks:
// events are queued and handed to the sink by a fixed pool of workers, and
// dropped when the queue is full.
type Dispatcher struct {
	sink    port.Notifier
	log     *zap.Logger
	timeout time.Duration

	queue chan domain.Event
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sink port.Notifier, log *zap.Logger, buffer, workers int) *Dispatcher {
	if buffer <= 0 {
		buffer = 1024
	}
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{
		sink:    sink,
		log:     log,
		timeout: 5 * time.Second,
		queue:   make(chan domain.Event, buffer),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.run()
	}
	return d
}

func (d *Dispatcher) Notify(_ context.Context, ev domain.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.NotificationsDropped.Inc()
		return nil
	}
	select {
	case d.queue <- ev:
	default:
		metrics.NotificationsDropped.Inc()
		d.log.Warn("notification queue full, dropping event",
			zap.String("event", string(ev.Type)), zap.String("trade", ev.TradeID))
	}
	return nil
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for ev := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.sink.Notify(ctx, ev); err != nil {
			metrics.NotificationsFailed.Inc()
			d.log.Warn("notification failed", zap.String("event", string(ev.Type)), zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting events and waits until queued ones are delivered or ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fanout delivers each event to every sink and reports the first failure.
type Fanout []port.Notifier

func (f Fanout) Notify(ctx context.Context, ev domain.Event) error {
	var first error
	for _, n := range f {
		if err := n.Notify(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
