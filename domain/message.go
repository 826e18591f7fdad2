// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event. Content is stored in its
// sanitized form; Lang is the detected ISO 639-1 code, empty when
// detection was inconclusive.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	SenderID       string
	Content        string
	Lang           string
	SentAt         time.Time
}
