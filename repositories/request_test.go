package repositories

import (
	"log/slog"
	"sync"
	"testing"

	"market-chat/domain"
	"market-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, slog.Default(), nil)
}

func Test_Create_And_Get_Request(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	// Given a fresh pending request
	request := domain.NewChatRequest("alice", "bob")

	// When it is persisted then fetched back
	req.NoError(store.CreateRequest(request))
	fetched, err := store.GetRequest(request.ID)

	// Then everything round-trips, including pending status
	req.NoError(err)
	req.Equal(request.ID, fetched.ID)
	req.Equal("alice", fetched.FromID)
	req.Equal("bob", fetched.ToID)
	req.Equal(domain.StatusPending, fetched.Status)
	req.Nil(fetched.ConversationID)
}

func Test_Get_Unknown_Request(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	_, err := store.GetRequest(domain.NewChatRequest("a", "b").ID)
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Accept_Creates_Conversation_And_Participants(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	request := domain.NewChatRequest("alice", "bob")
	req.NoError(store.CreateRequest(request))

	conv := domain.NewConversation()
	participants := domain.ParticipantsFor(conv.ID, request)

	resolved, err := store.ResolveRequest(request.ID, domain.StatusPending, domain.StatusAccepted,
		&conv, participants)
	req.NoError(err)
	req.Equal(domain.StatusAccepted, resolved.Status)
	req.NotNil(resolved.ConversationID)
	req.Equal(conv.ID, *resolved.ConversationID)

	stored, err := store.GetConversation(conv.ID)
	req.NoError(err)
	req.False(stored.IsClosed)

	fetched, err := store.ListParticipants(conv.ID)
	req.NoError(err)
	req.Len(fetched, 2)

	isIn, err := store.IsParticipant(conv.ID, "alice")
	req.NoError(err)
	req.True(isIn)
	isIn, err = store.IsParticipant(conv.ID, "eve")
	req.NoError(err)
	req.False(isIn)
}

func Test_Deny_Leaves_No_Conversation(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	request := domain.NewChatRequest("alice", "bob")
	req.NoError(store.CreateRequest(request))

	resolved, err := store.ResolveRequest(request.ID, domain.StatusPending, domain.StatusDenied,
		nil, nil)
	req.NoError(err)
	req.Equal(domain.StatusDenied, resolved.Status)
	req.Nil(resolved.ConversationID)
}

func Test_Resolve_Twice_Fails(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	request := domain.NewChatRequest("alice", "bob")
	req.NoError(store.CreateRequest(request))

	_, err := store.ResolveRequest(request.ID, domain.StatusPending, domain.StatusDenied, nil, nil)
	req.NoError(err)

	conv := domain.NewConversation()
	_, err = store.ResolveRequest(request.ID, domain.StatusPending, domain.StatusAccepted,
		&conv, domain.ParticipantsFor(conv.ID, request))
	req.ErrorIs(err, errors.ErrAlreadyResolved)

	// The losing accept must not have created anything
	_, err = store.GetConversation(conv.ID)
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Concurrent_Resolutions_Exactly_One_Wins(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	request := domain.NewChatRequest("alice", "bob")
	req.NoError(store.CreateRequest(request))

	var wg sync.WaitGroup
	results := make([]error, 2)
	convs := make([]domain.Conversation, 2)
	for i := range results {
		convs[i] = domain.NewConversation()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = store.ResolveRequest(request.ID, domain.StatusPending, domain.StatusAccepted,
				&convs[i], domain.ParticipantsFor(convs[i].ID, request))
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		default:
			req.ErrorIs(err, errors.ErrAlreadyResolved)
			losses++
		}
	}
	req.Equal(1, wins)
	req.Equal(1, losses)

	// Exactly one conversation exists
	var found int
	for _, conv := range convs {
		if _, err := store.GetConversation(conv.ID); err == nil {
			found++
		}
	}
	req.Equal(1, found)
}

func Test_Pending_Index_Follows_Lifecycle(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	first := domain.NewChatRequest("alice", "bob")
	second := domain.NewChatRequest("clara", "bob")
	req.NoError(store.CreateRequest(first))
	req.NoError(store.CreateRequest(second))

	pending, err := store.ListPendingRequests("bob")
	req.NoError(err)
	req.Len(pending, 2)

	_, err = store.ResolveRequest(first.ID, domain.StatusPending, domain.StatusDenied, nil, nil)
	req.NoError(err)

	pending, err = store.ListPendingRequests("bob")
	req.NoError(err)
	req.Len(pending, 1)
	req.Equal(second.ID, pending[0].ID)

	pending, err = store.ListPendingRequests("alice")
	req.NoError(err)
	req.Empty(pending)
}
