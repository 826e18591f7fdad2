package repositories

import (
	"encoding/json"
	stderrors "errors"
	"time"

	"market-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// User is the repository-level representation of an account.
// Availability and Description only matter for responders; for
// requesters they stay at their zero values.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Roles        []string
	IsAvailable  bool
	Description  string
	CreatedAt    time.Time
}

type diskUser struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	FullName     string   `json:"fullName"`
	PasswordHash string   `json:"passwordHash"`
	Roles        []string `json:"roles"`
	IsAvailable  bool     `json:"isAvailable"`
	Description  string   `json:"description,omitempty"`
	CreatedAt    int64    `json:"createdAt"`
}

func fromUser(user User) diskUser {
	return diskUser{
		ID:           user.ID,
		Email:        user.Email,
		FullName:     user.FullName,
		PasswordHash: user.PasswordHash,
		Roles:        user.Roles,
		IsAvailable:  user.IsAvailable,
		Description:  user.Description,
		CreatedAt:    user.CreatedAt.Unix(),
	}
}

func toUser(disk diskUser) User {
	return User{
		ID:           disk.ID,
		Email:        disk.Email,
		FullName:     disk.FullName,
		PasswordHash: disk.PasswordHash,
		Roles:        disk.Roles,
		IsAvailable:  disk.IsAvailable,
		Description:  disk.Description,
		CreatedAt:    time.Unix(disk.CreatedAt, 0).UTC(),
	}
}

// CreateUser persists a new account under both its email key and an ID
// back-reference, so lookups work either way. It returns the newly
// generated user ID.
func (s *Store) CreateUser(email, fullName, hashedPassword string, roles []string) (string, error) {
	newID := uuid.New().String()
	user := User{
		ID:           newID,
		Email:        email,
		FullName:     fullName,
		PasswordHash: hashedPassword,
		Roles:        roles,
		IsAvailable:  true,
		CreatedAt:    time.Now().UTC(),
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		key := userKey(email)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := setJSON(txn, key, fromUser(user)); err != nil {
			return err
		}
		return setJSON(txn, userIDKey(newID), fromUser(user))
	})
	if err != nil {
		return "", err
	}
	return newID, nil
}

func (s *Store) GetUserByEmail(email string) (User, error) {
	var disk diskUser
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(email), &disk)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return User{}, errors.ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return toUser(disk), nil
}

func (s *Store) GetUserByID(id string) (User, error) {
	var disk diskUser
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userIDKey(id), &disk)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return User{}, errors.ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return toUser(disk), nil
}

// UpdateProfile rewrites the mutable part of a responder profile under
// both keys in one transaction and returns the stored result.
func (s *Store) UpdateProfile(id, fullName, description string, isAvailable bool) (User, error) {
	var updated User
	err := s.db.Update(func(txn *badger.Txn) error {
		var disk diskUser
		if err := getJSON(txn, userIDKey(id), &disk); err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrNotFound
			}
			return err
		}
		disk.FullName = fullName
		disk.Description = description
		disk.IsAvailable = isAvailable
		updated = toUser(disk)
		if err := setJSON(txn, userIDKey(id), disk); err != nil {
			return err
		}
		return setJSON(txn, userKey(disk.Email), disk)
	})
	if err != nil {
		return User{}, err
	}
	return updated, nil
}

// ListAvailableResponders scans all accounts and keeps responders
// currently marked available. A full scan is fine at this scale; the
// userid keyspace holds one entry per account.
func (s *Store) ListAvailableResponders() ([]User, error) {
	var users []User
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte("userid:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disk diskUser
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &disk)
			})
			if err != nil {
				return err
			}
			user := toUser(disk)
			if !user.IsAvailable || !hasRole(user.Roles, "responder") {
				continue
			}
			users = append(users, user)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
