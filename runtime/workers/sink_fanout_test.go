package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"market-chat/domain/event"
	"market-chat/mocks"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSinkFanout_Every_Sink_Consumes(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	first := mocks.NewMockEventSink(ctrl)
	second := mocks.NewMockEventSink(ctrl)
	evt := event.MessageReceived{MessageID: uuid.New(), ConversationID: uuid.New()}

	// Given two registered sinks
	first.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)
	second.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	events := make(chan event.DomainEvent, 1)
	worker := NewSinkFanout(log, events, 1*time.Second, first, second)

	// When an event is fanned out
	worker.Fanout(context.Background(), evt)

	req.NotNil(worker)
}

func TestSinkFanout_Failing_Sink_Does_Not_Block_Others(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	failing := mocks.NewMockEventSink(ctrl)
	healthy := mocks.NewMockEventSink(ctrl)
	evt := event.ConversationClosed{ConversationID: uuid.New(), ClosedAt: time.Now().UTC()}

	// Given the first sink fails
	failing.EXPECT().Consume(gomock.Any(), evt).Return(context.DeadlineExceeded).Times(1)
	// Then the second one still consumes
	healthy.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	events := make(chan event.DomainEvent, 1)
	worker := NewSinkFanout(log, events, 20*time.Millisecond, failing, healthy)

	worker.Fanout(context.Background(), evt)
}

func TestSinkFanout_Run_Drains_Channel_Until_Cancel(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sink := mocks.NewMockEventSink(ctrl)
	evt := event.ProfileUpdated{UserID: uuid.NewString()}

	consumed := make(chan struct{})
	sink.EXPECT().Consume(gomock.Any(), evt).DoAndReturn(
		func(ctx context.Context, e event.DomainEvent) error {
			close(consumed)
			return nil
		}).Times(1)

	events := make(chan event.DomainEvent, 1)
	worker := NewSinkFanout(log, events, 1*time.Second, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// When an event lands on the channel
	events <- evt

	select {
	case <-consumed:
	case <-time.After(1 * time.Second):
		req.Fail("sink never consumed the event")
	}

	// Then cancellation stops the worker cleanly
	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(1 * time.Second):
		req.Fail("worker did not stop on cancel")
	}
}
