package sink_test

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/sink"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func merged(ids ...string) event.MessagesMerged {
	messages := make([]domain.Message, len(ids))
	for i, id := range ids {
		messages[i] = domain.Message{ID: id, ConversationID: "C1_U1", Content: "hola " + id}
	}
	return event.MessagesMerged{ConversationID: "C1_U1", Messages: messages}
}

func TestIndexSink_FlushOnSize(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	out := make(chan []domain.Message, 1)
	s := sink.NewIndexSink(out, 3, time.Minute, log)

	// Given the same message merged twice, then a third one
	req.NoError(s.Consume(context.Background(), merged("m1", "m2")))
	req.NoError(s.Consume(context.Background(), merged("m1", "m2")))
	req.Empty(out)
	req.NoError(s.Consume(context.Background(), merged("m1", "m2", "m3")))

	// Then one batch of three
	batch := <-out
	req.Len(batch, 3)
}

func TestIndexSink_FlushOnTimeout(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	out := make(chan []domain.Message, 1)
	s := sink.NewIndexSink(out, 100, 20*time.Millisecond, log)

	req.NoError(s.Consume(context.Background(), merged("m1")))

	req.Eventually(func() bool { return len(out) == 1 }, time.Second, 5*time.Millisecond)
}

func TestIndexSink_NeverBlocks(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	out := make(chan []domain.Message)
	s := sink.NewIndexSink(out, 1, time.Minute, log)

	// Given nobody reads the channel
	done := make(chan struct{})
	go func() {
		_ = s.Consume(context.Background(), merged("m1"))
		_ = s.Consume(context.Background(), event.ConversationsRefreshed{})
		close(done)
	}()

	req.Eventually(func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestIndexSink_SkipsVolatile(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	out := make(chan []domain.Message, 1)
	s := sink.NewIndexSink(out, 1, time.Minute, log)

	req.NoError(s.Consume(context.Background(), event.MessagesMerged{
		ConversationID: "C1_U1",
		Messages:       []domain.Message{{ID: "local-1", Volatile: true}},
	}))
	s.Flush()

	req.Empty(out)
}
