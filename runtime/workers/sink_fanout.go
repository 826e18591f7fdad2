package workers

import (
	"context"
	"log/slog"
	"time"

	"market-chat/contract"
	"market-chat/domain/event"
)

// SinkFanout drains the dispatcher's sink channel into the in-process
// consumers (search index, projections).
//
// It provides best-effort fan-out with no guarantees regarding
// delivery, ordering, durability, or retries. SinkFanout is not a
// message broker.
//
// It is intended for observability and side effects, not for core
// domain logic: the durable write already happened before the event
// reached this worker.
type SinkFanout struct {
	log         *slog.Logger
	events      chan event.DomainEvent
	sinks       []contract.EventSink
	sinkTimeout time.Duration
}

func NewSinkFanout(log *slog.Logger, events chan event.DomainEvent,
	sinkTimeout time.Duration, sinks ...contract.EventSink) *SinkFanout {
	return &SinkFanout{log: log, events: events, sinks: sinks, sinkTimeout: sinkTimeout}
}

func (w *SinkFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping sink fanout")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			w.Fanout(ctx, evt)
		}
	}
}

// Fanout One sink for each event. A slow sink is bounded by the
// per-sink timeout so it cannot back up the whole pipeline.
func (w *SinkFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("sink consume failed", "event", evt.EventName(), "error", err)
		}
		cancel()
	}
}
