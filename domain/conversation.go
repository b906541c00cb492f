package domain

import (
	"sort"
	"strings"
)

type ConversationKind string

const (
	KindRequest ConversationKind = "request"
	KindDirect  ConversationKind = "direct"
)

const DirectChatTitle = "direct chat"

// Conversation is a logical thread between two participants,
// independent of where its messages are physically stored.
type Conversation struct {
	ID               string
	CounterpartyID   string
	CounterpartyName string
	OwnerID          string
	Subject          string
	Kind             ConversationKind
	LastMessage      string
	LastMessageTime  int64
	UnreadCount      int
	DiscoveredPaths  PathSet
}

// DirectConversationID builds a stable id for a conversation that has no
// request behind it. The order of both participants does not matter.
func DirectConversationID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// Touch folds a message into the conversation summary.
func (c *Conversation) Touch(m Message) {
	if m.Timestamp >= c.LastMessageTime {
		c.LastMessage = m.Content
		c.LastMessageTime = m.Timestamp
	}
	if m.SenderRole == RoleCounterparty && !m.Read {
		c.UnreadCount++
	}
}
