package repositories

import (
	"encoding/json"
	stderrors "errors"
	"time"

	"market-chat/domain"
	"market-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type diskRequest struct {
	ID             string  `json:"id"`
	FromID         string  `json:"fromId"`
	ToID           string  `json:"toId"`
	Status         string  `json:"status"`
	CreatedAt      int64   `json:"createdAt"`
	ConversationID *string `json:"conversationId,omitempty"`
}

func fromChatRequest(req domain.ChatRequest) diskRequest {
	disk := diskRequest{
		ID:        req.ID.String(),
		FromID:    req.FromID,
		ToID:      req.ToID,
		Status:    string(req.Status),
		CreatedAt: req.CreatedAt.UnixNano(),
	}
	if req.ConversationID != nil {
		s := req.ConversationID.String()
		disk.ConversationID = &s
	}
	return disk
}

func toChatRequest(disk diskRequest) (domain.ChatRequest, error) {
	id, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.ChatRequest{}, err
	}
	req := domain.ChatRequest{
		ID:        id,
		FromID:    disk.FromID,
		ToID:      disk.ToID,
		Status:    domain.RequestStatus(disk.Status),
		CreatedAt: time.Unix(0, disk.CreatedAt).UTC(),
	}
	if disk.ConversationID != nil {
		convID, err := uuid.Parse(*disk.ConversationID)
		if err != nil {
			return domain.ChatRequest{}, err
		}
		req.ConversationID = &convID
	}
	return req, nil
}

// CreateRequest persists a new pending request together with its entry
// in the recipient's pending index, in one transaction.
func (s *Store) CreateRequest(req domain.ChatRequest) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, requestKey(req.ID), fromChatRequest(req)); err != nil {
			return err
		}
		return setJSON(txn, pendingIdxKey(req.ToID, req.CreatedAt.UnixNano(), req.ID),
			fromChatRequest(req))
	})
}

func (s *Store) GetRequest(id uuid.UUID) (domain.ChatRequest, error) {
	var disk diskRequest
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, requestKey(id), &disk)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.ChatRequest{}, errors.ErrNotFound
	}
	if err != nil {
		return domain.ChatRequest{}, err
	}
	return toChatRequest(disk)
}

// ResolveRequest flips the request status from expected to next inside a
// single transaction, so that two concurrent resolutions cannot both
// win. Badger detects the read-write overlap and aborts the loser with
// ErrConflict; the retry then observes the terminal status and returns
// ErrAlreadyResolved. When conv is non-nil the conversation, its two
// participants and their membership indexes are committed atomically
// with the status flip, which is what makes conversation creation
// exactly-once.
func (s *Store) ResolveRequest(id uuid.UUID, expected, next domain.RequestStatus,
	conv *domain.Conversation, participants []domain.Participant) (domain.ChatRequest, error) {
	for {
		var resolved domain.ChatRequest
		err := s.db.Update(func(txn *badger.Txn) error {
			var disk diskRequest
			if err := getJSON(txn, requestKey(id), &disk); err != nil {
				if stderrors.Is(err, badger.ErrKeyNotFound) {
					return errors.ErrNotFound
				}
				return err
			}
			current, err := toChatRequest(disk)
			if err != nil {
				return err
			}
			if current.Status != expected {
				return errors.ErrAlreadyResolved
			}
			current.Status = next
			if conv != nil {
				current.ConversationID = &conv.ID
				if err = setJSON(txn, conversationKey(conv.ID), fromConversation(*conv)); err != nil {
					return err
				}
				for _, p := range participants {
					if err = setJSON(txn, participantKey(p.ConversationID, p.UserID), diskParticipant{
						ConversationID: p.ConversationID.String(),
						UserID:         p.UserID,
						Role:           string(p.Role),
					}); err != nil {
						return err
					}
					if err = txn.Set(userConversationKey(p.UserID, p.ConversationID), []byte("1")); err != nil {
						return err
					}
				}
			}
			if err = txn.Delete(pendingIdxKey(current.ToID, current.CreatedAt.UnixNano(), current.ID)); err != nil {
				return err
			}
			resolved = current
			return setJSON(txn, requestKey(id), fromChatRequest(current))
		})
		if stderrors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return domain.ChatRequest{}, err
		}
		return resolved, nil
	}
}

// ListPendingRequests scans the recipient's pending index, oldest first.
func (s *Store) ListPendingRequests(toID string) ([]domain.ChatRequest, error) {
	var requests []domain.ChatRequest
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte("reqidx:" + toID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disk diskRequest
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &disk)
			})
			if err != nil {
				return err
			}
			req, err := toChatRequest(disk)
			if err != nil {
				return err
			}
			// The index entry is a snapshot taken at creation time, but
			// a resolved request no longer has one: pending is implied.
			requests = append(requests, req)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return requests, nil
}
