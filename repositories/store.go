// Package repositories persists the chat entities in BadgerDB.
//
// Keys are designed for prefix scans and lexicographic time ordering:
//
//	req:{id}                              chat request
//	reqidx:{toId}:{padded-ts}:{id}        pending-request index (removed on resolve)
//	conv:{id}                             conversation
//	part:{convId}:{userId}                participant
//	userconv:{userId}:{convId}            membership index
//	msg:{convId}:{padded-ts}:{id}         message
//	user:{email}                          account
//	userid:{id}                           email back-reference
//
// Values are JSON. Timestamps in keys use 19-digit zero padding so
// lexicographic order equals chronological order; the UUID suffix acts
// as a collision disconnector if two entries land on the same
// nanosecond.
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type Store struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewStore(db *badger.DB, log *slog.Logger, limitMessages *int) *Store {
	return &Store{db: db, log: log, limitMessages: limitMessages}
}

func requestKey(id uuid.UUID) []byte {
	return []byte("req:" + id.String())
}

func pendingIdxKey(toID string, createdAtNano int64, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("reqidx:%s:%019d:%s", toID, createdAtNano, id))
}

func conversationKey(id uuid.UUID) []byte {
	return []byte("conv:" + id.String())
}

func participantKey(conversationID uuid.UUID, userID string) []byte {
	return []byte("part:" + conversationID.String() + ":" + userID)
}

func userConversationKey(userID string, conversationID uuid.UUID) []byte {
	return []byte("userconv:" + userID + ":" + conversationID.String())
}

func messageKey(conversationID uuid.UUID, sentAtNano int64, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", conversationID, sentAtNano, id))
}

func userKey(email string) []byte {
	return []byte("user:" + email)
}

func userIDKey(id string) []byte {
	return []byte("userid:" + id)
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	bytes, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, bytes)
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}
