package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"market-chat/domain"
	"market-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type diskConversation struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
	IsClosed  bool   `json:"isClosed"`
	ClosedAt  *int64 `json:"closedAt,omitempty"`
}

type diskParticipant struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Role           string `json:"role"`
}

type diskMessage struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Content        string `json:"content"`
	Lang           string `json:"lang,omitempty"`
	SentAt         int64  `json:"sentAt"`
}

func fromConversation(conv domain.Conversation) diskConversation {
	disk := diskConversation{
		ID:        conv.ID.String(),
		CreatedAt: conv.CreatedAt.UnixNano(),
		IsClosed:  conv.IsClosed,
	}
	if conv.ClosedAt != nil {
		nano := conv.ClosedAt.UnixNano()
		disk.ClosedAt = &nano
	}
	return disk
}

func toConversation(disk diskConversation) (domain.Conversation, error) {
	id, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.Conversation{}, err
	}
	conv := domain.Conversation{
		ID:        id,
		CreatedAt: time.Unix(0, disk.CreatedAt).UTC(),
		IsClosed:  disk.IsClosed,
	}
	if disk.ClosedAt != nil {
		closedAt := time.Unix(0, *disk.ClosedAt).UTC()
		conv.ClosedAt = &closedAt
	}
	return conv, nil
}

func toMessage(disk diskMessage) (domain.Message, error) {
	id, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.Message{}, err
	}
	convID, err := uuid.Parse(disk.ConversationID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:             id,
		ConversationID: convID,
		SenderID:       disk.SenderID,
		Content:        disk.Content,
		Lang:           disk.Lang,
		SentAt:         time.Unix(0, disk.SentAt).UTC(),
	}, nil
}

func (s *Store) GetConversation(id uuid.UUID) (domain.Conversation, error) {
	var disk diskConversation
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, conversationKey(id), &disk)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Conversation{}, errors.ErrNotFound
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	return toConversation(disk)
}

func (s *Store) IsParticipant(conversationID uuid.UUID, userID string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(participantKey(conversationID, userID))
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) ListParticipants(conversationID uuid.UUID) ([]domain.Participant, error) {
	var participants []domain.Participant
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte("part:" + conversationID.String() + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disk diskParticipant
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &disk)
			})
			if err != nil {
				return err
			}
			convID, err := uuid.Parse(disk.ConversationID)
			if err != nil {
				return err
			}
			participants = append(participants, domain.Participant{
				ConversationID: convID,
				UserID:         disk.UserID,
				Role:           domain.ParticipantRole(disk.Role),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return participants, nil
}

// AppendMessage persists a message in BadgerDB.
// The key is formatted as "msg:{conversation_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
//
// The conversation is re-read inside the write transaction so that a
// message can never commit after a concurrent close did.
func (s *Store) AppendMessage(msg domain.Message) error {
	for {
		err := s.db.Update(func(txn *badger.Txn) error {
			var disk diskConversation
			if err := getJSON(txn, conversationKey(msg.ConversationID), &disk); err != nil {
				if stderrors.Is(err, badger.ErrKeyNotFound) {
					return errors.ErrNotFound
				}
				return err
			}
			if disk.IsClosed {
				return errors.ErrConversationClosed
			}
			return setJSON(txn, messageKey(msg.ConversationID, msg.SentAt.UnixNano(), msg.ID), diskMessage{
				ID:             msg.ID.String(),
				ConversationID: msg.ConversationID.String(),
				SenderID:       msg.SenderID,
				Content:        msg.Content,
				Lang:           msg.Lang,
				SentAt:         msg.SentAt.UnixNano(),
			})
		})
		if stderrors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}

// CloseConversation marks the conversation closed. Closing twice is a
// conflict the caller sees as ErrAlreadyClosed; the first close wins
// and its ClosedAt stands.
func (s *Store) CloseConversation(id uuid.UUID, closedAt time.Time) (domain.Conversation, error) {
	for {
		var closed domain.Conversation
		err := s.db.Update(func(txn *badger.Txn) error {
			var disk diskConversation
			if err := getJSON(txn, conversationKey(id), &disk); err != nil {
				if stderrors.Is(err, badger.ErrKeyNotFound) {
					return errors.ErrNotFound
				}
				return err
			}
			if disk.IsClosed {
				return errors.ErrAlreadyClosed
			}
			nano := closedAt.UnixNano()
			disk.IsClosed = true
			disk.ClosedAt = &nano
			var err error
			if closed, err = toConversation(disk); err != nil {
				return err
			}
			return setJSON(txn, conversationKey(id), disk)
		})
		if stderrors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return domain.Conversation{}, err
		}
		return closed, nil
	}
}

// ListMessages retrieves messages of a conversation using a prefix scan.
// Thanks to the padded timestamp in the key, messages are naturally sorted by time.
// Iteration is reverse (newest first) and stops once the configured
// limitMessages is reached; the returned cursor resumes from there.
func (s *Store) ListMessages(conversationID uuid.UUID, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string
	err := s.db.View(func(txn *badger.Txn) error {
		prefixStr := "msg:" + conversationID.String() + ":"
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk back
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if s.limitMessages != nil && len(messages) == *s.limitMessages {
				s.log.Debug(fmt.Sprintf("Maximum of %d message reached", *s.limitMessages))
				break
			}
			item := it.Item()
			// Memorize cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			var disk diskMessage
			err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &disk)
			})
			if err != nil {
				return err
			}
			msg, err := toMessage(disk)
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if lastKey == "" {
		// Nothing read: the page is final, no cursor to resume from
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

// ListConversationsFor builds the "my conversations" listing: one scan
// over the membership index, then per conversation the other
// participant's name and the newest message timestamp, read from the
// last message key rather than its value. Closed conversations are
// skipped; they stay on disk but leave the listing.
func (s *Store) ListConversationsFor(userID string) ([]domain.ConversationSummary, error) {
	var summaries []domain.ConversationSummary
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte("userconv:" + userID + ":")
		prefixLen := len(prefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		var convIDs []uuid.UUID
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			convID, err := uuid.Parse(string(it.Item().Key()[prefixLen:]))
			if err != nil {
				return err
			}
			convIDs = append(convIDs, convID)
		}
		it.Close()

		for _, convID := range convIDs {
			var diskConv diskConversation
			if err := getJSON(txn, conversationKey(convID), &diskConv); err != nil {
				return err
			}
			conv, err := toConversation(diskConv)
			if err != nil {
				return err
			}
			if conv.IsClosed {
				continue
			}
			summary := domain.ConversationSummary{
				ConversationID: convID,
				CreatedAt:      conv.CreatedAt,
			}
			if err = s.fillOtherParticipant(txn, convID, userID, &summary); err != nil {
				return err
			}
			if err = s.fillLastMessageAt(txn, convID, &summary); err != nil {
				return err
			}
			summaries = append(summaries, summary)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

func (s *Store) fillOtherParticipant(txn *badger.Txn, conversationID uuid.UUID,
	userID string, summary *domain.ConversationSummary) error {
	prefix := []byte("part:" + conversationID.String() + ":")
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var disk diskParticipant
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		})
		if err != nil {
			return err
		}
		if disk.UserID == userID {
			continue
		}
		summary.OtherUserID = disk.UserID
		var diskU diskUser
		err = getJSON(txn, userIDKey(disk.UserID), &diskU)
		switch {
		case stderrors.Is(err, badger.ErrKeyNotFound):
			// Account removed; keep the ID, leave the name blank
		case err != nil:
			return err
		default:
			summary.OtherFullName = diskU.FullName
		}
	}
	return nil
}

func (s *Store) fillLastMessageAt(txn *badger.Txn, conversationID uuid.UUID,
	summary *domain.ConversationSummary) error {
	prefixStr := "msg:" + conversationID.String() + ":"
	prefix := []byte(prefixStr)
	options := badger.DefaultIteratorOptions
	options.Reverse = true
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()
	it.Seek(append(prefix, []byte("9999999999999999999")...))
	if !it.ValidForPrefix(prefix) {
		return nil
	}
	// The padded timestamp is the segment right after the prefix
	rest := string(it.Item().Key()[len(prefixStr):])
	padded, _, found := strings.Cut(rest, ":")
	if !found {
		return nil
	}
	var nano int64
	if _, err := fmt.Sscanf(padded, "%d", &nano); err != nil {
		return err
	}
	at := time.Unix(0, nano).UTC()
	summary.LastMessageAt = &at
	return nil
}
