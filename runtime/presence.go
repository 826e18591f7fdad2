// Package runtime owns the live-connection registries and the event
// dispatcher. It coordinates delivery without containing business logic
// or domain rules.
package runtime

import (
	"hash/fnv"
	"sync"

	"market-chat/contract"
	"market-chat/domain"
)

const presenceShards = 16

// presenceShard guards one slice of the identity space so unrelated
// identities never contend on the same lock.
type presenceShard struct {
	mu    sync.RWMutex
	conns map[string]map[string]contract.Connection // identity -> connection id -> connection
}

// Presence is the connection registry: a multimap keyed by identity,
// because a user may hold several live connections at once (mobile
// reconnects, second device). Addressing an identity with no live
// connection yields an empty set, never an error.
type Presence struct {
	shards [presenceShards]*presenceShard
}

func NewPresence() *Presence {
	p := &Presence{}
	for i := range p.shards {
		p.shards[i] = &presenceShard{conns: make(map[string]map[string]contract.Connection)}
	}
	return p
}

func (p *Presence) shard(identityID string) *presenceShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identityID))
	return p.shards[h.Sum32()%presenceShards]
}

func (p *Presence) Register(identity domain.Identity, conn contract.Connection) {
	s := p.shard(identity.ID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conns[identity.ID]; !ok {
		s.conns[identity.ID] = make(map[string]contract.Connection)
	}
	s.conns[identity.ID][conn.ID()] = conn
}

// Deregister removes one connection. Other connections of the same
// identity are untouched; empty entries are removed to keep the table
// from leaking over time.
func (p *Presence) Deregister(identityID, connID string) {
	s := p.shard(identityID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.conns[identityID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(s.conns, identityID)
	}
}

// ConnectionsFor returns the live connections of one identity. An
// offline identity is a silent no-op at delivery time, not a failure.
func (p *Presence) ConnectionsFor(identityID string) []contract.Connection {
	s := p.shard(identityID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.conns[identityID]
	if !ok {
		return nil
	}
	conns := make([]contract.Connection, 0, len(set))
	for _, c := range set {
		conns = append(conns, c)
	}
	return conns
}

// All returns every live connection, used for global broadcasts such as
// responder profile updates.
func (p *Presence) All() []contract.Connection {
	var conns []contract.Connection
	for _, s := range p.shards {
		s.mu.RLock()
		for _, set := range s.conns {
			for _, c := range set {
				conns = append(conns, c)
			}
		}
		s.mu.RUnlock()
	}
	return conns
}

// Counts reports (identities, connections) for telemetry.
func (p *Presence) Counts() (int, int) {
	identities, connections := 0, 0
	for _, s := range p.shards {
		s.mu.RLock()
		identities += len(s.conns)
		for _, set := range s.conns {
			connections += len(set)
		}
		s.mu.RUnlock()
	}
	return identities, connections
}
