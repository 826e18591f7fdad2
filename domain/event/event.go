// Package event defines the events the engine publishes to live
// connections and in-process sinks. Payload field names are part of the
// wire contract with the mobile clients and must not change.
package event

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is anything the dispatcher can fan out.
type DomainEvent interface {
	EventName() string
}

// RequestCreated is delivered to every live connection of the addressed
// responder when a new chat request appears.
type RequestCreated struct {
	RequestID uuid.UUID `json:"requestId"`
	FromID    string    `json:"fromId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (RequestCreated) EventName() string { return "request-created" }

// RequestResolved notifies both sides of a handshake outcome.
// ConversationID is nil on denial.
type RequestResolved struct {
	RequestID      uuid.UUID  `json:"requestId"`
	Accepted       bool       `json:"accepted"`
	ConversationID *uuid.UUID `json:"conversationId"`
}

func (RequestResolved) EventName() string { return "request-resolved" }

// ResponseAcknowledged goes only to the responder's own connections.
// It carries the same conversationId semantics as RequestResolved; the
// two clients react differently to "I accepted" and "the other party
// accepted", so the duplication stays on the event surface.
type ResponseAcknowledged struct {
	RequestID      uuid.UUID  `json:"requestId"`
	Accepted       bool       `json:"accepted"`
	ConversationID *uuid.UUID `json:"conversationId"`
}

func (ResponseAcknowledged) EventName() string { return "response-acknowledged" }

// MessageReceived is broadcast to the channel members of a conversation.
type MessageReceived struct {
	MessageID      uuid.UUID `json:"messageId"`
	ConversationID uuid.UUID `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	Lang           string    `json:"lang,omitempty"`
	SentAt         time.Time `json:"sentAt"`
}

func (MessageReceived) EventName() string { return "message-received" }

// ConversationClosed terminates a channel. No reopen event exists.
type ConversationClosed struct {
	ConversationID uuid.UUID `json:"conversationId"`
	ClosedAt       time.Time `json:"closedAt"`
}

func (ConversationClosed) EventName() string { return "conversation-closed" }

// ProfileUpdated is broadcast to all live connections so responder
// listings refresh in real time.
type ProfileUpdated struct {
	UserID      string `json:"userId"`
	FullName    string `json:"fullName"`
	Description string `json:"description,omitempty"`
	IsAvailable bool   `json:"isAvailable"`
}

func (ProfileUpdated) EventName() string { return "profile-updated" }
