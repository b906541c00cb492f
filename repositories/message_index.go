package repositories

import (
	"chat-sync/domain"
	"chat-sync/domain/search"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blugelabs/bluge"
)

const (
	fieldContent      = "content"
	fieldConversation = "conversation"
	fieldSender       = "sender"
	fieldTimestamp    = "timestamp"
)

// MessageIndex is the full-text index of merged messages.
// Documents are keyed by conversation and message id, re-indexing the same
// message replaces it.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Index skips volatile messages, their id only lives in this process.
func (i *MessageIndex) Index(_ context.Context, messages ...domain.Message) error {
	batch := bluge.NewBatch()
	indexed := 0
	for _, m := range messages {
		if m.Volatile || m.ID == "" {
			continue
		}
		doc := bluge.NewDocument(documentID(m.ConversationID, m.ID)).
			AddField(bluge.NewTextField(fieldContent, m.Content).StoreValue()).
			AddField(bluge.NewKeywordField(fieldConversation, m.ConversationID).StoreValue()).
			AddField(bluge.NewKeywordField(fieldSender, m.SenderID).StoreValue()).
			AddField(bluge.NewNumericField(fieldTimestamp, float64(m.Timestamp)).StoreValue())
		batch.Update(doc.ID(), doc)
		indexed++
	}
	if indexed == 0 {
		return nil
	}
	if err := i.writer.Batch(batch); err != nil {
		return fmt.Errorf("failed to index %d messages: %w", indexed, err)
	}
	i.log.Debug("Messages indexed", "count", indexed)
	return nil
}

// Search matches terms against message content, restricted to a conversation when one is given.
func (i *MessageIndex) Search(ctx context.Context, query search.Query) ([]search.Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open index reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	boolean := bluge.NewBooleanQuery().AddMust(bluge.NewMatchQuery(query.Terms).SetField(fieldContent))
	if query.ConversationID != "" {
		boolean.AddMust(bluge.NewTermQuery(query.ConversationID).SetField(fieldConversation))
	}
	limit := query.Limit
	if limit <= 0 {
		limit = search.DefaultLimit
	}

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, boolean))
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var hits []search.Hit
	match, err := iterator.Next()
	for err == nil && match != nil {
		hit := search.Hit{Score: match.Score}
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				_, hit.MessageID = splitDocumentID(string(value))
			case fieldContent:
				hit.Content = string(value)
			case fieldConversation:
				hit.ConversationID = string(value)
			case fieldSender:
				hit.SenderID = string(value)
			case fieldTimestamp:
				if ts, decodeErr := bluge.DecodeNumericFloat64(value); decodeErr == nil {
					hit.Timestamp = int64(ts)
				}
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		hits = append(hits, hit)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func documentID(conversationID, messageID string) string {
	return conversationID + "\x00" + messageID
}

func splitDocumentID(id string) (string, string) {
	conversationID, messageID, found := strings.Cut(id, "\x00")
	if !found {
		return "", id
	}
	return conversationID, messageID
}
