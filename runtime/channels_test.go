package runtime

import (
	"testing"

	"market-chat/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestChannels_Join_And_Members(t *testing.T) {
	req := require.New(t)
	channels := NewChannels()
	conversationID := uuid.New()
	identity := domain.Identity{ID: uuid.NewString()}
	conn := testConn{id: uuid.NewString(), identity: identity}

	// Given an empty channel table
	req.Empty(channels.MembersOf(conversationID))

	// When a connection joins
	channels.Join(conversationID, conn)

	// Then it is a member of that channel only
	req.Len(channels.MembersOf(conversationID), 1)
	req.Empty(channels.MembersOf(uuid.New()))
}

func TestChannels_Leave_Unjoined_Is_NoOp(t *testing.T) {
	req := require.New(t)
	channels := NewChannels()
	conversationID := uuid.New()

	// When an unknown connection leaves, nothing happens
	channels.Leave(conversationID, uuid.NewString())

	chans, subs := channels.Counts()
	req.Zero(chans)
	req.Zero(subs)
}

func TestChannels_Leave_Twice_Is_NoOp(t *testing.T) {
	req := require.New(t)
	channels := NewChannels()
	conversationID := uuid.New()
	identity := domain.Identity{ID: uuid.NewString()}
	first := testConn{id: uuid.NewString(), identity: identity}
	second := testConn{id: uuid.NewString(), identity: identity}

	channels.Join(conversationID, first)
	channels.Join(conversationID, second)

	// When a member leaves twice
	channels.Leave(conversationID, first.ID())
	channels.Leave(conversationID, first.ID())

	// Then the remaining member is untouched
	req.Len(channels.MembersOf(conversationID), 1)
	req.Contains(channels.MembersOf(conversationID), second)
}

func TestChannels_Empty_Channel_Entry_Is_Removed(t *testing.T) {
	req := require.New(t)
	channels := NewChannels()
	conversationID := uuid.New()
	conn := testConn{id: uuid.NewString()}

	channels.Join(conversationID, conn)
	channels.Leave(conversationID, conn.ID())

	// Then no empty set is left behind
	chans, subs := channels.Counts()
	req.Zero(chans)
	req.Zero(subs)
}
