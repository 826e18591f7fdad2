package services

import (
	"context"
	"log/slog"

	"market-chat/contract"
	"market-chat/domain"
	"market-chat/domain/event"
	"market-chat/repositories"

	"github.com/samber/lo"
)

type IDirectoryService interface {
	HasCapability(userID string, c domain.Capability) (bool, error)
	AvailableResponders() ([]ResponderProfile, error)
	Profile(userID string) (ResponderProfile, error)
	UpdateProfile(ctx context.Context, userID, fullName, description string, isAvailable bool) (ResponderProfile, error)
}

// ResponderProfile is the directory-facing view of an account.
type ResponderProfile struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	Description string `json:"description,omitempty"`
	IsAvailable bool   `json:"isAvailable"`
}

// DirectoryService answers capability questions for the request
// workflow and serves the responder listings. Profile updates are
// broadcast to every live connection so listings refresh in real time.
type DirectoryService struct {
	store      *repositories.Store
	presence   contract.IPresence
	dispatcher contract.IDispatcher
	log        *slog.Logger
}

func NewDirectoryService(store *repositories.Store, presence contract.IPresence,
	dispatcher contract.IDispatcher, log *slog.Logger) *DirectoryService {
	return &DirectoryService{store: store, presence: presence, dispatcher: dispatcher, log: log}
}

func (s *DirectoryService) HasCapability(userID string, c domain.Capability) (bool, error) {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return false, err
	}
	for _, cap := range domain.CapabilitiesFromRoles(user.Roles) {
		if cap == c {
			return true, nil
		}
	}
	return false, nil
}

func (s *DirectoryService) AvailableResponders() ([]ResponderProfile, error) {
	users, err := s.store.ListAvailableResponders()
	if err != nil {
		return nil, err
	}
	return lo.Map(users, func(u repositories.User, _ int) ResponderProfile {
		return toProfile(u)
	}), nil
}

func (s *DirectoryService) Profile(userID string) (ResponderProfile, error) {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return ResponderProfile{}, err
	}
	return toProfile(user), nil
}

// UpdateProfile persists the change, then tells everyone: availability
// flips must reach browsing requesters without a refresh.
func (s *DirectoryService) UpdateProfile(ctx context.Context, userID, fullName,
	description string, isAvailable bool) (ResponderProfile, error) {
	updated, err := s.store.UpdateProfile(userID, fullName, description, isAvailable)
	if err != nil {
		return ResponderProfile{}, err
	}

	s.dispatcher.Deliver(ctx, s.presence.All(), event.ProfileUpdated{
		UserID:      updated.ID,
		FullName:    updated.FullName,
		Description: updated.Description,
		IsAvailable: updated.IsAvailable,
	})
	return toProfile(updated), nil
}

func toProfile(u repositories.User) ResponderProfile {
	return ResponderProfile{
		ID:          u.ID,
		FullName:    u.FullName,
		Description: u.Description,
		IsAvailable: u.IsAvailable,
	}
}
