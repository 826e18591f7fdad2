package services

import (
	"context"
	"sync"
	"testing"

	"market-chat/domain"
	"market-chat/domain/event"
	"market-chat/errors"

	"github.com/stretchr/testify/require"
)

func Test_Create_Request_Notifies_Every_Responder_Connection(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	aliceID, _ := f.registerUser(t, "alice@example.com", "Alice Martin", []string{"requester"})
	bobID, bobPhone := f.registerUser(t, "bob@example.com", "Bob Durand", []string{"responder"})
	// Bob also has a laptop session
	bobLaptop := newRecorderConn(bobID, domain.CapabilityResponder)
	f.presence.Register(bobLaptop.Identity(), bobLaptop)

	request, err := f.requests.Create(ctx, aliceID, bobID)
	req.NoError(err)
	req.Equal(domain.StatusPending, request.Status)

	for _, conn := range []*recorderConn{bobPhone, bobLaptop} {
		events := conn.Events()
		req.Len(events, 1)
		created := events[0].(event.RequestCreated)
		req.Equal(request.ID, created.RequestID)
		req.Equal(aliceID, created.FromID)
	}
}

func Test_Create_Request_To_Self(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	aliceID, _ := f.registerUser(t, "alice@example.com", "Alice Martin", []string{"requester", "responder"})

	_, err := f.requests.Create(context.Background(), aliceID, aliceID)
	req.ErrorIs(err, errors.ErrInvalidTarget)
}

func Test_Create_Request_To_Non_Responder(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	aliceID, _ := f.registerUser(t, "alice@example.com", "Alice Martin", []string{"requester"})
	claraID, _ := f.registerUser(t, "clara@example.com", "Clara Petit", []string{"requester"})

	_, err := f.requests.Create(context.Background(), aliceID, claraID)
	req.ErrorIs(err, errors.ErrInvalidTarget)

	// An identity that does not exist at all is the same rejection
	_, err = f.requests.Create(context.Background(), aliceID, "ghost")
	req.ErrorIs(err, errors.ErrInvalidTarget)
}

func Test_Accept_Notifies_Both_Sides(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	aliceID, aliceConn := f.registerUser(t, "alice@example.com", "Alice Martin", []string{"requester"})
	bobID, bobConn := f.registerUser(t, "bob@example.com", "Bob Durand", []string{"responder"})

	request, err := f.requests.Create(ctx, aliceID, bobID)
	req.NoError(err)

	resolved, err := f.requests.Respond(ctx, request.ID, bobID, true)
	req.NoError(err)
	req.Equal(domain.StatusAccepted, resolved.Status)
	req.NotNil(resolved.ConversationID)

	// Alice sees the outcome
	req.Equal([]string{"request-resolved"}, aliceConn.NamesSeen())
	outcome := aliceConn.Events()[0].(event.RequestResolved)
	req.True(outcome.Accepted)
	req.Equal(*resolved.ConversationID, *outcome.ConversationID)

	// Bob sees the outcome plus his own acknowledgement
	req.Equal([]string{"request-created", "request-resolved", "response-acknowledged"}, bobConn.NamesSeen())
	ack := bobConn.Events()[2].(event.ResponseAcknowledged)
	req.True(ack.Accepted)
	req.Equal(*resolved.ConversationID, *ack.ConversationID)

	// The fresh conversation is open
	isClosed, closedAt, err := f.conversation.IsClosed(*resolved.ConversationID, aliceID)
	req.NoError(err)
	req.False(isClosed)
	req.Nil(closedAt)
}

func Test_Deny_Notifies_Requester_Only(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	aliceID, aliceConn := f.registerUser(t, "alice@example.com", "Alice Martin", []string{"requester"})
	bobID, bobConn := f.registerUser(t, "bob@example.com", "Bob Durand", []string{"responder"})

	request, err := f.requests.Create(ctx, aliceID, bobID)
	req.NoError(err)

	resolved, err := f.requests.Respond(ctx, request.ID, bobID, false)
	req.NoError(err)
	req.Equal(domain.StatusDenied, resolved.Status)
	req.Nil(resolved.ConversationID)

	req.Equal([]string{"request-resolved"}, aliceConn.NamesSeen())
	outcome := aliceConn.Events()[0].(event.RequestResolved)
	req.False(outcome.Accepted)
	req.Nil(outcome.ConversationID)

	// Bob only ever saw the incoming request
	req.Equal([]string{"request-created"}, bobConn.NamesSeen())
}

func Test_Respond_Authorization(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	aliceID, _ := f.registerUser(t, "alice@example.com", "Alice Martin", []string{"requester"})
	bobID, _ := f.registerUser(t, "bob@example.com", "Bob Durand", []string{"responder"})
	eveID, _ := f.registerUser(t, "eve@example.com", "Eve Leroy", []string{"responder"})

	request, err := f.requests.Create(ctx, aliceID, bobID)
	req.NoError(err)

	// Only the addressed responder may resolve, not even the requester
	_, err = f.requests.Respond(ctx, request.ID, eveID, true)
	req.ErrorIs(err, errors.ErrForbidden)
	_, err = f.requests.Respond(ctx, request.ID, aliceID, true)
	req.ErrorIs(err, errors.ErrForbidden)

	// Unknown request id
	_, err = f.requests.Respond(ctx, domain.NewChatRequest("x", "y").ID, bobID, true)
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Second_Respond_Sees_AlreadyResolved(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	aliceID, _ := f.registerUser(t, "alice@example.com", "Alice Martin", []string{"requester"})
	bobID, _ := f.registerUser(t, "bob@example.com", "Bob Durand", []string{"responder"})

	request, err := f.requests.Create(ctx, aliceID, bobID)
	req.NoError(err)

	_, err = f.requests.Respond(ctx, request.ID, bobID, true)
	req.NoError(err)

	// A replayed accept must not create a second conversation
	_, err = f.requests.Respond(ctx, request.ID, bobID, true)
	req.ErrorIs(err, errors.ErrAlreadyResolved)
	_, err = f.requests.Respond(ctx, request.ID, bobID, false)
	req.ErrorIs(err, errors.ErrAlreadyResolved)
}

func Test_Concurrent_Accepts_Create_One_Conversation(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	aliceID, _ := f.registerUser(t, "alice@example.com", "Alice Martin", []string{"requester"})
	bobID, _ := f.registerUser(t, "bob@example.com", "Bob Durand", []string{"responder"})

	request, err := f.requests.Create(ctx, aliceID, bobID)
	req.NoError(err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.requests.Respond(ctx, request.ID, bobID, true)
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			req.ErrorIs(err, errors.ErrAlreadyResolved)
		}
	}
	req.Equal(1, wins)
}

func Test_Pending_Requests_Listing(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	aliceID, _ := f.registerUser(t, "alice@example.com", "Alice Martin", []string{"requester"})
	claraID, _ := f.registerUser(t, "clara@example.com", "Clara Petit", []string{"requester"})
	bobID, _ := f.registerUser(t, "bob@example.com", "Bob Durand", []string{"responder"})

	first, err := f.requests.Create(ctx, aliceID, bobID)
	req.NoError(err)
	_, err = f.requests.Create(ctx, claraID, bobID)
	req.NoError(err)

	pending, err := f.requests.Pending(bobID)
	req.NoError(err)
	req.Len(pending, 2)

	_, err = f.requests.Respond(ctx, first.ID, bobID, false)
	req.NoError(err)

	pending, err = f.requests.Pending(bobID)
	req.NoError(err)
	req.Len(pending, 1)
	req.Equal(claraID, pending[0].FromID)
}
