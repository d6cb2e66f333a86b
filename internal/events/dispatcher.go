package events

import (
	"context"
	"time"

	"comanda/internal/kitchen"
	"comanda/internal/models"

	"go.uber.org/zap"
)

// Dispatcher forwards committed orders to publishers off the request path.
// Events are queued by OrderCommitted and delivered by Run.
type Dispatcher struct {
	kitchen.NopObserver

	publishers []Publisher
	logger     *zap.Logger
	timeout    time.Duration
	queue      chan OrderEvent
}

var _ kitchen.Observer = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher delivering to every publisher
func NewDispatcher(logger *zap.Logger, timeout time.Duration, publishers ...Publisher) *Dispatcher {
	return &Dispatcher{
		publishers: publishers,
		logger:     logger,
		timeout:    timeout,
		queue:      make(chan OrderEvent, 128),
	}
}

// OrderCommitted queues the order event. A full queue drops the event.
func (d *Dispatcher) OrderCommitted(order *models.Order) {
	ev := NewOrderEvent(order)
	select {
	case d.queue <- ev:
	default:
		d.logger.Warn("Event queue full, dropping order event", zap.String("reference", ev.Reference))
	}
}

// Run delivers queued events until ctx is cancelled, then flushes what is
// already queued.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev OrderEvent) {
	for _, p := range d.publishers {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := p.Publish(ctx, ev); err != nil {
			d.logger.Error("Failed to publish order event",
				zap.String("reference", ev.Reference),
				zap.Error(err))
		}
		cancel()
	}
}
