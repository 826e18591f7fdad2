package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"market-chat/domain"
	"market-chat/domain/event"
	"market-chat/moderation"
	"market-chat/repositories"
	"market-chat/runtime"
	"market-chat/search"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// recorderConn captures delivered events instead of writing to a socket.
type recorderConn struct {
	id       string
	identity domain.Identity
	mu       sync.Mutex
	events   []event.DomainEvent
}

func newRecorderConn(userID string, caps ...domain.Capability) *recorderConn {
	return &recorderConn{
		id:       uuid.NewString(),
		identity: domain.Identity{ID: userID, Capabilities: caps},
	}
}

func (r *recorderConn) ID() string                { return r.id }
func (r *recorderConn) Identity() domain.Identity { return r.identity }

func (r *recorderConn) Deliver(_ context.Context, e event.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorderConn) Events() []event.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.DomainEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorderConn) NamesSeen() []string {
	var names []string
	for _, e := range r.Events() {
		names = append(names, e.EventName())
	}
	return names
}

// fixture wires the real registries, dispatcher, store, moderation and
// index together, the way the server does.
type fixture struct {
	store        *repositories.Store
	presence     *runtime.Presence
	channels     *runtime.Channels
	dispatcher   *runtime.Dispatcher
	index        *search.Index
	requests     *RequestService
	conversation *ConversationService
	directory    *DirectoryService
	authn        *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	moderator, err := moderation.NewModerator([]string{"scam"}, '*')
	require.NoError(t, err)

	store := repositories.NewStore(db, log, nil)
	presence := runtime.NewPresence()
	channels := runtime.NewChannels()
	dispatcher := runtime.NewDispatcher(log, 64, time.Second)
	index := search.NewIndex(writer, log)

	f := &fixture{
		store:      store,
		presence:   presence,
		channels:   channels,
		dispatcher: dispatcher,
		index:      index,
	}
	f.directory = NewDirectoryService(store, presence, dispatcher, log)
	f.requests = NewRequestService(store, f.directory, presence, dispatcher, log)
	f.conversation = NewConversationService(store, channels, dispatcher, moderator, index, 500, log)
	f.authn = NewAuthService(store, newTestTokens())
	return f
}

// registerUser creates an account and a live recorder connection for it.
func (f *fixture) registerUser(t *testing.T, email, fullName string, roles []string) (string, *recorderConn) {
	t.Helper()
	id, err := f.store.CreateUser(email, fullName, "hash", roles)
	require.NoError(t, err)
	conn := newRecorderConn(id, domain.CapabilitiesFromRoles(roles)...)
	f.presence.Register(conn.Identity(), conn)
	return id, conn
}

// acceptedHandshake runs create+accept and returns the conversation id.
func (f *fixture) acceptedHandshake(t *testing.T, fromID, toID string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	request, err := f.requests.Create(ctx, fromID, toID)
	require.NoError(t, err)
	resolved, err := f.requests.Respond(ctx, request.ID, toID, true)
	require.NoError(t, err)
	require.NotNil(t, resolved.ConversationID)
	return *resolved.ConversationID
}
