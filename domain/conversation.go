package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is created exactly once per accepted ChatRequest.
// IsClosed is monotonic: once true it never reverts, and ClosedAt is
// set iff IsClosed.
type Conversation struct {
	ID        uuid.UUID
	CreatedAt time.Time
	IsClosed  bool
	ClosedAt  *time.Time
}

func NewConversation() Conversation {
	return Conversation{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
	}
}

// ParticipantRole records which side of the originating handshake a
// participant was on.
type ParticipantRole string

const (
	RoleRequester ParticipantRole = "requester"
	RoleResponder ParticipantRole = "responder"
)

// Participant permanently associates a user with a conversation.
// Exactly two per conversation; (ConversationID, UserID) is unique.
type Participant struct {
	ConversationID uuid.UUID
	UserID         string
	Role           ParticipantRole
}

// ParticipantsFor builds the two participants of a conversation born
// from the given accepted request.
func ParticipantsFor(conversationID uuid.UUID, req ChatRequest) []Participant {
	return []Participant{
		{ConversationID: conversationID, UserID: req.FromID, Role: RoleRequester},
		{ConversationID: conversationID, UserID: req.ToID, Role: RoleResponder},
	}
}

// ConversationSummary is the listing shape for "my conversations".
type ConversationSummary struct {
	ConversationID uuid.UUID
	CreatedAt      time.Time
	LastMessageAt  *time.Time
	OtherUserID    string
	OtherFullName  string
}
