package sink_test

import (
	"bytes"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/sink"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTerminalSink_PrintsEachMessageOnce(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	s := sink.NewTerminalSink(&out, false)
	ctx := context.Background()

	// Given
	req.NoError(s.Consume(ctx, event.ConversationOpened{Conversation: domain.Conversation{
		ID: "C1_U1", CounterpartyID: "U1", Subject: domain.DirectChatTitle,
	}}))
	first := event.MessagesMerged{ConversationID: "C1_U1", Messages: []domain.Message{
		{ID: "m1", Content: "hola", SenderID: "U1", SenderRole: domain.RoleCounterparty, Timestamp: 1},
	}}
	second := event.MessagesMerged{ConversationID: "C1_U1", Messages: []domain.Message{
		first.Messages[0],
		{ID: "m2", Content: "que tal", SenderID: "C1", SenderRole: domain.RoleSelf, Timestamp: 2, Status: domain.StatusSent},
	}}

	// When
	req.NoError(s.Consume(ctx, first))
	req.NoError(s.Consume(ctx, second))

	// Then
	rendered := out.String()
	req.Contains(rendered, "direct chat (U1)")
	req.Equal(1, strings.Count(rendered, "hola"))
	req.Contains(rendered, "U1: hola")
	req.Contains(rendered, "me: que tal ✓")
}

func TestTerminalSink_RendersConversationList(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	s := sink.NewTerminalSink(&out, false)

	s.RenderConversations([]domain.Conversation{
		{ID: "order-7", Kind: domain.KindRequest, CounterpartyName: "Rapido SA", Subject: "Mudanza", UnreadCount: 2},
	})

	rendered := out.String()
	req.Contains(rendered, "order-7")
	req.Contains(rendered, "Rapido SA")
	req.Contains(rendered, "Mudanza")
}
