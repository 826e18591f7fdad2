package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"market-chat/contract"
	"market-chat/domain/event"
	"market-chat/mocks"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestDispatcher_Dead_Connection_Does_Not_Abort_Fanout(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dead := mocks.NewMockConnection(ctrl)
	alive := mocks.NewMockConnection(ctrl)
	evt := event.ConversationClosed{ConversationID: uuid.New(), ClosedAt: time.Now().UTC()}

	// Given the first connection went stale between selection and delivery
	dead.EXPECT().Deliver(gomock.Any(), evt).Return(context.Canceled).Times(1)
	dead.EXPECT().ID().Return("dead").AnyTimes()

	// Then the second still receives the event
	alive.EXPECT().Deliver(gomock.Any(), evt).Return(nil).Times(1)
	alive.EXPECT().ID().Return("alive").AnyTimes()

	dispatcher := NewDispatcher(log, 8, 50*time.Millisecond)

	// When the event is fanned out
	dispatcher.Deliver(context.Background(), []contract.Connection{dead, alive}, evt)

	// And the event reached the sink pipeline exactly once
	select {
	case got := <-dispatcher.SinkEvents():
		req.Equal(evt, got)
	default:
		req.Fail("event never handed to the sink pipeline")
	}
}

func TestDispatcher_Full_Sink_Channel_Drops_Event(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	dispatcher := NewDispatcher(log, 1, 50*time.Millisecond)
	first := event.ProfileUpdated{UserID: uuid.NewString()}
	second := event.ProfileUpdated{UserID: uuid.NewString()}

	// When two events are dispatched with a sink buffer of one
	dispatcher.Deliver(context.Background(), nil, first)
	dispatcher.Deliver(context.Background(), nil, second)

	// Then only the first survives; the loss never blocked Deliver
	req.Equal(first, <-dispatcher.SinkEvents())
	select {
	case evt := <-dispatcher.SinkEvents():
		req.Fail("unexpected event in sink channel", "event", evt)
	default:
	}
}
