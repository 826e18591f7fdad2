//go:generate go run go.uber.org/mock/mockgen -source=request_service.go -destination=../mocks/mock_request_service.go -package=mocks
package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"market-chat/contract"
	"market-chat/domain"
	"market-chat/domain/event"
	"market-chat/errors"

	"github.com/google/uuid"
)

type IRequestService interface {
	Create(ctx context.Context, fromID, toID string) (domain.ChatRequest, error)
	Respond(ctx context.Context, requestID uuid.UUID, byID string, accept bool) (domain.ChatRequest, error)
	Pending(toID string) ([]domain.ChatRequest, error)
}

// RequestService runs the handshake gating conversation creation.
// It is the sole writer of request status and the sole creator of
// conversation/participant pairs.
type RequestService struct {
	store      contract.IStore
	directory  contract.IDirectory
	presence   contract.IPresence
	dispatcher contract.IDispatcher
	log        *slog.Logger
}

func NewRequestService(store contract.IStore, directory contract.IDirectory,
	presence contract.IPresence, dispatcher contract.IDispatcher, log *slog.Logger) *RequestService {
	return &RequestService{
		store:      store,
		directory:  directory,
		presence:   presence,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Create persists a pending request and notifies every live connection
// of the addressed responder. Self-requests and targets without the
// responder capability are rejected before anything is written.
func (s *RequestService) Create(ctx context.Context, fromID, toID string) (domain.ChatRequest, error) {
	if toID == fromID {
		return domain.ChatRequest{}, errors.ErrInvalidTarget
	}
	isResponder, err := s.directory.HasCapability(toID, domain.CapabilityResponder)
	if err != nil || !isResponder {
		return domain.ChatRequest{}, errors.ErrInvalidTarget
	}

	request := domain.NewChatRequest(fromID, toID)
	if err = s.store.CreateRequest(request); err != nil {
		return domain.ChatRequest{}, asPersistence(err)
	}

	s.dispatcher.Deliver(ctx, s.presence.ConnectionsFor(toID), event.RequestCreated{
		RequestID: request.ID,
		FromID:    request.FromID,
		CreatedAt: request.CreatedAt,
	})
	return request, nil
}

// Respond resolves a pending request. Only the addressed responder may
// act, and exactly one resolution ever wins: the status flip is a
// compare-and-set at the store, so a duplicated accept (network retry,
// double tap) observes AlreadyResolved instead of creating a second
// conversation.
func (s *RequestService) Respond(ctx context.Context, requestID uuid.UUID,
	byID string, accept bool) (domain.ChatRequest, error) {
	request, err := s.store.GetRequest(requestID)
	if err != nil {
		return domain.ChatRequest{}, asPersistence(err)
	}
	if byID != request.ToID {
		return domain.ChatRequest{}, errors.ErrForbidden
	}

	if !accept {
		resolved, err := s.store.ResolveRequest(requestID, domain.StatusPending, domain.StatusDenied, nil, nil)
		if err != nil {
			return domain.ChatRequest{}, asPersistence(err)
		}
		// Denial is only the requester's business
		s.dispatcher.Deliver(ctx, s.presence.ConnectionsFor(resolved.FromID), event.RequestResolved{
			RequestID: resolved.ID,
			Accepted:  false,
		})
		return resolved, nil
	}

	conv := domain.NewConversation()
	resolved, err := s.store.ResolveRequest(requestID, domain.StatusPending, domain.StatusAccepted,
		&conv, domain.ParticipantsFor(conv.ID, request))
	if err != nil {
		return domain.ChatRequest{}, asPersistence(err)
	}

	outcome := event.RequestResolved{
		RequestID:      resolved.ID,
		Accepted:       true,
		ConversationID: resolved.ConversationID,
	}
	s.dispatcher.Deliver(ctx, s.presence.ConnectionsFor(resolved.FromID), outcome)
	s.dispatcher.Deliver(ctx, s.presence.ConnectionsFor(resolved.ToID), outcome)
	// The responder is both actor and audience; its own connections get
	// a distinct acknowledgement on top of the shared outcome.
	s.dispatcher.Deliver(ctx, s.presence.ConnectionsFor(resolved.ToID), event.ResponseAcknowledged{
		RequestID:      resolved.ID,
		Accepted:       true,
		ConversationID: resolved.ConversationID,
	})
	return resolved, nil
}

// Pending lists the caller's unresolved incoming requests.
func (s *RequestService) Pending(toID string) ([]domain.ChatRequest, error) {
	requests, err := s.store.ListPendingRequests(toID)
	if err != nil {
		return nil, asPersistence(err)
	}
	return requests, nil
}

// asPersistence keeps taxonomy errors intact and folds everything else
// into PersistenceFailure: callers never see storage internals.
func asPersistence(err error) error {
	switch {
	case stderrors.Is(err, errors.ErrNotFound),
		stderrors.Is(err, errors.ErrForbidden),
		stderrors.Is(err, errors.ErrAlreadyResolved),
		stderrors.Is(err, errors.ErrAlreadyClosed),
		stderrors.Is(err, errors.ErrConversationClosed),
		stderrors.Is(err, errors.ErrUserAlreadyExists):
		return err
	default:
		return fmt.Errorf("%w: %v", errors.ErrPersistenceFailure, err)
	}
}
