package runtime

import (
	"context"
	"log/slog"
	"time"

	"market-chat/contract"
	"market-chat/domain/event"
)

// Dispatcher delivers one event to a set of live connections.
//
// It provides best-effort fan-out with no guarantees regarding
// delivery, durability, or retries. Dispatcher is not a message broker.
//
// A connection that went stale between selection and delivery is
// skipped and logged; it never aborts delivery to the remaining
// connections. Connection.Deliver must not block, so a slow consumer
// cannot stall its siblings; the per-connection write loop preserves
// ordering downstream.
type Dispatcher struct {
	log             *slog.Logger
	deliveryTimeout time.Duration
	sinkEvents      chan event.DomainEvent
}

func NewDispatcher(log *slog.Logger, bufferSize int, deliveryTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		log:             log,
		deliveryTimeout: deliveryTimeout,
		sinkEvents:      make(chan event.DomainEvent, bufferSize),
	}
}

// Deliver fans the event out to conns, then hands it to the sink
// pipeline without blocking. An event lost on a full sink channel only
// affects projections, never the live delivery that already happened.
func (d *Dispatcher) Deliver(ctx context.Context, conns []contract.Connection, e event.DomainEvent) {
	for _, conn := range conns {
		deliverCtx, cancel := context.WithTimeout(ctx, d.deliveryTimeout)
		if err := conn.Deliver(deliverCtx, e); err != nil {
			d.log.Warn("event delivery skipped",
				"event", e.EventName(),
				"connection_id", conn.ID(),
				"error", err)
		}
		cancel()
	}

	select {
	case d.sinkEvents <- e:
	default:
		d.log.Debug("sink channel full, event lost for projections", "event", e.EventName())
	}
}

// SinkEvents is drained by the supervised fanout worker.
func (d *Dispatcher) SinkEvents() chan event.DomainEvent {
	return d.sinkEvents
}
