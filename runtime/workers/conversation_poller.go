package workers

import (
	"chat-sync/contract"
	"chat-sync/domain/event"
	"context"
	"log/slog"
	"time"
)

// ConversationPoller rebuilds the conversation list on a fixed interval and
// publishes it. A failed build is logged and retried on the next tick.
type ConversationPoller struct {
	lister   contract.IConversationLister
	bus      contract.IBus
	interval time.Duration
	log      *slog.Logger
}

func NewConversationPoller(lister contract.IConversationLister, bus contract.IBus, interval time.Duration, log *slog.Logger) *ConversationPoller {
	return &ConversationPoller{lister: lister, bus: bus, interval: interval, log: log}
}

func (w ConversationPoller) Run(ctx context.Context) error {
	// first list right away, the ticker only fires after one interval
	w.refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping conversation polling")
			return nil
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w ConversationPoller) refresh(ctx context.Context) {
	conversations, err := w.lister.Build(ctx)
	if err != nil {
		w.log.Warn("Conversation list refresh failed", "error", err)
		return
	}
	w.bus.Publish(ctx, event.ConversationsRefreshed{Conversations: conversations})
}
