package search

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"market-chat/domain/event"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewIndex(writer, slog.Default())
}

func messageEvent(conversationID uuid.UUID, content string) event.MessageReceived {
	return event.MessageReceived{
		MessageID:      uuid.New(),
		ConversationID: conversationID,
		SenderID:       "alice",
		Content:        content,
		SentAt:         time.Now().UTC(),
	}
}

func Test_Search_Finds_Indexed_Message(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)
	ctx := context.Background()
	conv := uuid.New()

	indexed := messageEvent(conv, "is the calculus textbook still available?")
	req.NoError(index.Consume(ctx, indexed))
	req.NoError(index.Consume(ctx, messageEvent(conv, "sure, pickup tomorrow works")))

	hits, err := index.Search(ctx, conv, "textbook", 10)
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal(indexed.MessageID.String(), hits[0].MessageID)
	req.Equal(indexed.Content, hits[0].Content)
}

func Test_Search_Scoped_To_Conversation(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)
	ctx := context.Background()
	mine := uuid.New()
	other := uuid.New()

	req.NoError(index.Consume(ctx, messageEvent(mine, "selling a desk lamp")))
	req.NoError(index.Consume(ctx, messageEvent(other, "selling a desk chair")))

	hits, err := index.Search(ctx, mine, "desk", 10)
	req.NoError(err)
	req.Len(hits, 1)
}

func Test_Consume_Ignores_Other_Events(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)

	err := index.Consume(context.Background(), event.ConversationClosed{
		ConversationID: uuid.New(),
		ClosedAt:       time.Now().UTC(),
	})
	req.NoError(err)
}
