package event

import (
	"chat-sync/domain"
)

// DomainEvent is anything published on the bus. Events are values and
// consumers must not mutate the slices they carry.
type DomainEvent interface {
	Name() string
}

// OpenConversationRequested asks the chat service to open a conversation.
// It replaces a global "open this chat" hook.
type OpenConversationRequested struct {
	CounterpartyID string
}

func (OpenConversationRequested) Name() string { return "OpenConversationRequested" }

type ConversationOpened struct {
	Conversation domain.Conversation
	Candidates   []domain.PathCandidate
	Generation   uint64
}

func (ConversationOpened) Name() string { return "ConversationOpened" }

// MessagesMerged carries the full canonical list after a merge.
type MessagesMerged struct {
	ConversationID string
	Messages       []domain.Message
}

func (MessagesMerged) Name() string { return "MessagesMerged" }

type MessageSendFailed struct {
	ConversationID string
	Draft          string
	Err            error
}

func (MessageSendFailed) Name() string { return "MessageSendFailed" }

type ConversationsRefreshed struct {
	Conversations []domain.Conversation
}

func (ConversationsRefreshed) Name() string { return "ConversationsRefreshed" }
