package repositories

import (
	"testing"

	"market-chat/errors"

	"github.com/stretchr/testify/require"
)

func Test_Create_And_Fetch_User(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	id, err := store.CreateUser("bob@example.com", "Bob Durand", "argon2hash", []string{"responder"})
	req.NoError(err)
	req.NotEmpty(id)

	byEmail, err := store.GetUserByEmail("bob@example.com")
	req.NoError(err)
	req.Equal(id, byEmail.ID)
	req.Equal("Bob Durand", byEmail.FullName)
	req.Equal([]string{"responder"}, byEmail.Roles)
	req.True(byEmail.IsAvailable)

	byID, err := store.GetUserByID(id)
	req.NoError(err)
	req.Equal(byEmail, byID)
}

func Test_Create_User_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	_, err := store.CreateUser("bob@example.com", "Bob Durand", "hash", []string{"responder"})
	req.NoError(err)

	_, err = store.CreateUser("bob@example.com", "Imposter", "otherhash", []string{"requester"})
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_Update_Profile_Visible_Under_Both_Keys(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	id, err := store.CreateUser("bob@example.com", "Bob Durand", "hash", []string{"responder"})
	req.NoError(err)

	updated, err := store.UpdateProfile(id, "Bob D.", "Vintage textbooks, campus pickup", false)
	req.NoError(err)
	req.Equal("Bob D.", updated.FullName)
	req.False(updated.IsAvailable)

	byEmail, err := store.GetUserByEmail("bob@example.com")
	req.NoError(err)
	req.Equal("Bob D.", byEmail.FullName)
	req.Equal("Vintage textbooks, campus pickup", byEmail.Description)
}

func Test_List_Available_Responders(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	bobID, err := store.CreateUser("bob@example.com", "Bob Durand", "hash", []string{"responder"})
	req.NoError(err)
	claraID, err := store.CreateUser("clara@example.com", "Clara Petit", "hash", []string{"responder"})
	req.NoError(err)
	_, err = store.CreateUser("alice@example.com", "Alice Martin", "hash", []string{"requester"})
	req.NoError(err)

	// Clara goes offline
	_, err = store.UpdateProfile(claraID, "Clara Petit", "", false)
	req.NoError(err)

	responders, err := store.ListAvailableResponders()
	req.NoError(err)
	req.Len(responders, 1)
	req.Equal(bobID, responders[0].ID)
}
