// Package projection builds read models from observed events.
// Projections never emit events and never block the pipeline feeding
// them.
package projection

import (
	"context"
	"sync"
	"time"

	"market-chat/domain/event"
)

// Stats counts delivered events by name. It backs the debug endpoint
// and gives a cheap liveness signal on the sink pipeline.
type Stats struct {
	mu        sync.RWMutex
	counts    map[string]uint64
	lastEvent time.Time
	startedAt time.Time
}

func NewStats() *Stats {
	return &Stats{
		counts:    make(map[string]uint64),
		startedAt: time.Now().UTC(),
	}
}

func (s *Stats) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[e.EventName()]++
	s.lastEvent = time.Now().UTC()
	return nil
}

// Snapshot returns a copy safe to serialize while events keep flowing.
func (s *Stats) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]uint64, len(s.counts))
	var total uint64
	for name, n := range s.counts {
		counts[name] = n
		total += n
	}
	snapshot := map[string]any{
		"events":    counts,
		"total":     total,
		"startedAt": s.startedAt,
	}
	if !s.lastEvent.IsZero() {
		snapshot["lastEventAt"] = s.lastEvent
	}
	return snapshot
}
