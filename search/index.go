// Package search maintains a Bluge full-text index over message
// content. The index is a projection fed by the event pipeline: it can
// lag behind the store and is rebuilt by replaying, never written to
// directly by command handlers.
package search

import (
	"context"
	"log/slog"

	"market-chat/domain/event"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{writer: writer, log: log}
}

// Hit is one search result. Content is the sanitized form, as stored.
type Hit struct {
	MessageID string
	Content   string
}

// Consume indexes message events and ignores everything else.
// Implements the sink contract, so a slow index never delays delivery.
func (i *Index) Consume(_ context.Context, e event.DomainEvent) error {
	msg, ok := e.(event.MessageReceived)
	if !ok {
		return nil
	}
	doc := bluge.NewDocument(msg.MessageID.String()).
		AddField(bluge.NewTextField("content", msg.Content).StoreValue()).
		AddField(bluge.NewKeywordField("conversation_id", msg.ConversationID.String())).
		AddField(bluge.NewDateTimeField("sent_at", msg.SentAt).Sortable())
	return i.writer.Update(doc.ID(), doc)
}

// Search returns the messages of one conversation matching the given
// terms, newest first. The conversation filter is a hard must: search
// never leaks content across conversations.
func (i *Index) Search(ctx context.Context, conversationID uuid.UUID, terms string, limit int) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("failed to close index reader", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content")).
		AddMust(bluge.NewTermQuery(conversationID.String()).SetField("conversation_id"))
	request := bluge.NewTopNSearch(limit, query).SortBy([]string{"-sent_at"})

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "content":
				hit.Content = string(value)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
