package runtime

import (
	"sync"

	"market-chat/contract"

	"github.com/google/uuid"
)

const channelShards = 16

type channelShard struct {
	mu      sync.RWMutex
	members map[uuid.UUID]map[string]contract.Connection // conversation -> connection id -> connection
}

// Channels tracks which connections subscribe to which conversation's
// broadcast scope. Membership here is purely a delivery-subscription
// state: leaving does not revoke participation, and a participant may
// rejoin at any time. Authorization happens in the conversation
// service before Join is ever called.
type Channels struct {
	shards [channelShards]*channelShard
}

func NewChannels() *Channels {
	c := &Channels{}
	for i := range c.shards {
		c.shards[i] = &channelShard{members: make(map[uuid.UUID]map[string]contract.Connection)}
	}
	return c
}

func (c *Channels) shard(conversationID uuid.UUID) *channelShard {
	// First byte of the UUID spreads uniformly, no need to hash.
	return c.shards[int(conversationID[0])%channelShards]
}

func (c *Channels) Join(conversationID uuid.UUID, conn contract.Connection) {
	s := c.shard(conversationID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[conversationID]; !ok {
		s.members[conversationID] = make(map[string]contract.Connection)
	}
	s.members[conversationID][conn.ID()] = conn
}

// Leave removes a connection from a channel. Leaving an unjoined
// channel, or leaving twice, is a no-op.
func (c *Channels) Leave(conversationID uuid.UUID, connID string) {
	s := c.shard(conversationID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.members[conversationID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(s.members, conversationID)
	}
}

func (c *Channels) MembersOf(conversationID uuid.UUID) []contract.Connection {
	s := c.shard(conversationID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.members[conversationID]
	if !ok {
		return nil
	}
	conns := make([]contract.Connection, 0, len(set))
	for _, m := range set {
		conns = append(conns, m)
	}
	return conns
}

// Counts reports (channels, subscriptions) for telemetry.
func (c *Channels) Counts() (int, int) {
	channels, subscriptions := 0, 0
	for _, s := range c.shards {
		s.mu.RLock()
		channels += len(s.members)
		for _, set := range s.members {
			subscriptions += len(set)
		}
		s.mu.RUnlock()
	}
	return channels, subscriptions
}
