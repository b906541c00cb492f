package runtime

import (
	"chat-sync/domain/event"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	name     string
	received *[]string
	err      error
}

func (s recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	*s.received = append(*s.received, s.name+":"+e.Name())
	return s.err
}

func TestBus_PublishInRegistrationOrder(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	bus := NewBus(log)
	var received []string

	// Given two sinks, the first one failing
	bus.Register("first", recordingSink{name: "first", received: &received, err: fmt.Errorf("boom")})
	bus.Register("second", recordingSink{name: "second", received: &received})

	// When
	bus.Publish(ctx, event.OpenConversationRequested{CounterpartyID: "U1"})

	// Then a failing sink does not stop the others
	req.Equal([]string{"first:OpenConversationRequested", "second:OpenConversationRequested"}, received)
}

func TestBus_Unregister(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	bus := NewBus(log)
	var received []string

	unregister := bus.Register("chat", recordingSink{name: "chat", received: &received})
	req.Equal(1, bus.Len())

	// When unregistering twice
	unregister()
	unregister()

	// Then nothing is delivered anymore
	bus.Publish(ctx, event.ConversationsRefreshed{})
	req.Empty(received)
	req.Equal(0, bus.Len())
}
