//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"market-chat/domain"
	"market-chat/domain/event"

	"github.com/google/uuid"
)

// Connection is one live transport session bound to a single identity.
// Deliver must not block: implementations enqueue into a bounded buffer
// and report a full or dead connection as an error the dispatcher can
// swallow.
type Connection interface {
	ID() string
	Identity() domain.Identity
	Deliver(ctx context.Context, e event.DomainEvent) error
}

// EventSink is an in-process consumer of the event stream (search
// index, projections). Sinks receive events after live delivery and
// must tolerate being behind.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IPresence tracks which live connections belong to which identity.
// Several connections per identity is the normal case (multi-device).
type IPresence interface {
	Register(identity domain.Identity, conn Connection)
	Deregister(identityID, connID string)
	ConnectionsFor(identityID string) []Connection
	All() []Connection
}

// IChannels tracks which connections subscribe to which conversation's
// broadcast scope. It performs no authorization; the conversation
// service is its only legitimate writer.
type IChannels interface {
	Join(conversationID uuid.UUID, conn Connection)
	Leave(conversationID uuid.UUID, connID string)
	MembersOf(conversationID uuid.UUID) []Connection
}

// IDispatcher is the shared publish primitive: best-effort fan-out of
// one event to a set of connections, then a handoff to the sink
// pipeline.
type IDispatcher interface {
	Deliver(ctx context.Context, conns []Connection, e event.DomainEvent)
}

// IStore is the persistence collaborator. All writes are durable once
// the call returns nil.
type IStore interface {
	CreateRequest(req domain.ChatRequest) error
	GetRequest(id uuid.UUID) (domain.ChatRequest, error)
	// ResolveRequest is the CAS primitive: it transitions the request
	// from expected to next, or fails with ErrAlreadyResolved when the
	// persisted status no longer matches. When conv is non-nil the
	// conversation and its participants are written in the same
	// transaction as the status flip.
	ResolveRequest(id uuid.UUID, expected, next domain.RequestStatus,
		conv *domain.Conversation, participants []domain.Participant) (domain.ChatRequest, error)
	ListPendingRequests(toID string) ([]domain.ChatRequest, error)

	GetConversation(id uuid.UUID) (domain.Conversation, error)
	IsParticipant(conversationID uuid.UUID, userID string) (bool, error)
	ListParticipants(conversationID uuid.UUID) ([]domain.Participant, error)
	AppendMessage(msg domain.Message) error
	CloseConversation(id uuid.UUID, closedAt time.Time) (domain.Conversation, error)
	ListMessages(conversationID uuid.UUID, cursor *string) ([]domain.Message, *string, error)
	ListConversationsFor(userID string) ([]domain.ConversationSummary, error)
}

// IDirectory is the identity collaborator consulted for capability
// checks. The engine never authenticates; it only asks questions about
// already-known users.
type IDirectory interface {
	HasCapability(userID string, c domain.Capability) (bool, error)
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding the need for manual naming in the Worker
// interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
