package domain

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the lifecycle state of a ChatRequest.
// Transitions are one-way: Pending -> Accepted or Pending -> Denied.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusDenied   RequestStatus = "denied"
)

// ChatRequest is the handshake gating conversation creation.
// ConversationID is non-nil iff Status is Accepted.
type ChatRequest struct {
	ID             uuid.UUID
	FromID         string
	ToID           string
	Status         RequestStatus
	CreatedAt      time.Time
	ConversationID *uuid.UUID
}

func NewChatRequest(fromID, toID string) ChatRequest {
	return ChatRequest{
		ID:        uuid.New(),
		FromID:    fromID,
		ToID:      toID,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Resolved reports whether the request reached a terminal state.
func (r ChatRequest) Resolved() bool {
	return r.Status != StatusPending
}
