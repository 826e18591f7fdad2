//go:generate go run go.uber.org/mock/mockgen -source=conversation_service.go -destination=../mocks/mock_conversation_service.go -package=mocks
package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"market-chat/contract"
	"market-chat/domain"
	"market-chat/domain/event"
	"market-chat/errors"
	"market-chat/moderation"
	"market-chat/search"

	"github.com/google/uuid"
)

type IConversationService interface {
	JoinChannel(conversationID uuid.UUID, identity domain.Identity, conn contract.Connection) error
	LeaveChannel(conversationID uuid.UUID, connID string)
	Send(ctx context.Context, conversationID uuid.UUID, senderID, content string) (domain.Message, error)
	Close(ctx context.Context, conversationID uuid.UUID, byID string) (domain.Conversation, error)
	IsClosed(conversationID uuid.UUID, callerID string) (bool, *time.Time, error)
	History(conversationID uuid.UUID, callerID string, cursor *string) ([]domain.Message, *string, error)
	Summaries(callerID string) ([]domain.ConversationSummary, error)
	Search(ctx context.Context, conversationID uuid.UUID, callerID, terms string) ([]search.Hit, error)
}

// ConversationService owns the conversation lifecycle: channel
// authorization, message append-and-broadcast, and the terminal close.
// It is the only legitimate writer of channel membership.
type ConversationService struct {
	store            contract.IStore
	channels         contract.IChannels
	dispatcher       contract.IDispatcher
	moderator        moderation.Moderator
	index            *search.Index
	maxContentLength int
	searchLimit      int
	log              *slog.Logger
}

func NewConversationService(store contract.IStore, channels contract.IChannels,
	dispatcher contract.IDispatcher, moderator moderation.Moderator,
	index *search.Index, maxContentLength int, log *slog.Logger) *ConversationService {
	return &ConversationService{
		store:            store,
		channels:         channels,
		dispatcher:       dispatcher,
		moderator:        moderator,
		index:            index,
		maxContentLength: maxContentLength,
		searchLimit:      25,
		log:              log,
	}
}

// JoinChannel subscribes a connection to a conversation's broadcast
// scope. Membership in the channel is a delivery concern only; the
// participant relation itself never changes here.
func (s *ConversationService) JoinChannel(conversationID uuid.UUID,
	identity domain.Identity, conn contract.Connection) error {
	if _, err := s.store.GetConversation(conversationID); err != nil {
		return asPersistence(err)
	}
	if err := s.requireParticipant(conversationID, identity.ID); err != nil {
		return err
	}
	s.channels.Join(conversationID, conn)
	return nil
}

// LeaveChannel is unconditional: leaving twice, or without having
// joined, is a no-op.
func (s *ConversationService) LeaveChannel(conversationID uuid.UUID, connID string) {
	s.channels.Leave(conversationID, connID)
}

// Send validates, sanitizes, persists, then broadcasts. Persistence
// happens strictly before delivery, so append order equals delivery
// order for messages that make it in; a broadcast only happens for a
// durable message.
func (s *ConversationService) Send(ctx context.Context, conversationID uuid.UUID,
	senderID, content string) (domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, errors.ErrEmptyContent
	}
	if len([]rune(content)) > s.maxContentLength {
		return domain.Message{}, errors.ErrContentTooLong
	}
	if _, err := s.store.GetConversation(conversationID); err != nil {
		return domain.Message{}, asPersistence(err)
	}
	if err := s.requireParticipant(conversationID, senderID); err != nil {
		return domain.Message{}, err
	}

	sanitized, foundWords := s.moderator.Censor(content)
	if len(foundWords) > 0 {
		s.log.Info("message censored", "sender", senderID, "words", len(foundWords))
	}

	msg := domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        sanitized,
		Lang:           s.moderator.Language(content),
		SentAt:         time.Now().UTC(),
	}
	if err := s.store.AppendMessage(msg); err != nil {
		return domain.Message{}, asPersistence(err)
	}

	s.dispatcher.Deliver(ctx, s.channels.MembersOf(conversationID), event.MessageReceived{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Lang:           msg.Lang,
		SentAt:         msg.SentAt,
	})
	return msg, nil
}

// Close is terminal: no reopen operation exists. The first close wins;
// a second attempt fails with AlreadyClosed and broadcasts nothing.
func (s *ConversationService) Close(ctx context.Context, conversationID uuid.UUID,
	byID string) (domain.Conversation, error) {
	if _, err := s.store.GetConversation(conversationID); err != nil {
		return domain.Conversation{}, asPersistence(err)
	}
	if err := s.requireParticipant(conversationID, byID); err != nil {
		return domain.Conversation{}, err
	}
	closed, err := s.store.CloseConversation(conversationID, time.Now().UTC())
	if err != nil {
		return domain.Conversation{}, asPersistence(err)
	}

	s.dispatcher.Deliver(ctx, s.channels.MembersOf(conversationID), event.ConversationClosed{
		ConversationID: closed.ID,
		ClosedAt:       *closed.ClosedAt,
	})
	return closed, nil
}

// IsClosed reads the persisted state, never a cache: a close can land
// while the asking client is not subscribed to the channel. Like the
// other reads, only a participant may ask.
func (s *ConversationService) IsClosed(conversationID uuid.UUID, callerID string) (bool, *time.Time, error) {
	conv, err := s.store.GetConversation(conversationID)
	if err != nil {
		return false, nil, asPersistence(err)
	}
	if err := s.requireParticipant(conversationID, callerID); err != nil {
		return false, nil, err
	}
	return conv.IsClosed, conv.ClosedAt, nil
}

// History pages through persisted messages, newest first,
// participant-gated.
func (s *ConversationService) History(conversationID uuid.UUID, callerID string,
	cursor *string) ([]domain.Message, *string, error) {
	if _, err := s.store.GetConversation(conversationID); err != nil {
		return nil, nil, asPersistence(err)
	}
	if err := s.requireParticipant(conversationID, callerID); err != nil {
		return nil, nil, err
	}
	return s.store.ListMessages(conversationID, cursor)
}

func (s *ConversationService) Summaries(callerID string) ([]domain.ConversationSummary, error) {
	summaries, err := s.store.ListConversationsFor(callerID)
	if err != nil {
		return nil, asPersistence(err)
	}
	return summaries, nil
}

// Search queries the full-text index, scoped to one conversation and
// participant-gated. The index lags the store by design: a message sent
// a moment ago may not be searchable yet.
func (s *ConversationService) Search(ctx context.Context, conversationID uuid.UUID,
	callerID, terms string) ([]search.Hit, error) {
	if _, err := s.store.GetConversation(conversationID); err != nil {
		return nil, asPersistence(err)
	}
	if err := s.requireParticipant(conversationID, callerID); err != nil {
		return nil, err
	}
	return s.index.Search(ctx, conversationID, terms, s.searchLimit)
}

func (s *ConversationService) requireParticipant(conversationID uuid.UUID, userID string) error {
	isIn, err := s.store.IsParticipant(conversationID, userID)
	if err != nil {
		return asPersistence(err)
	}
	if !isIn {
		return errors.ErrForbidden
	}
	return nil
}
