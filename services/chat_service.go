package services

import (
	"chat-sync/contract"
	"chat-sync/discovery"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/domain/search"
	"chat-sync/errors"
	"chat-sync/normalize"
	"chat-sync/projection"
	"chat-sync/runtime"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

type IChatService interface {
	OpenConversation(ctx context.Context, counterpartyID string) (domain.Conversation, error)
	SendMessage(ctx context.Context, conversationID, text string) (domain.Message, error)
	MarkAsRead(ctx context.Context) (int, error)
	Search(ctx context.Context, query search.Query) ([]search.Hit, error)
	Messages() []domain.Message
	Conversations() []domain.Conversation
	Current() (domain.Conversation, bool)
	Draft(conversationID string) string
}

// ChatService is the entry point of the engine for one participant.
// It owns the open conversation: its listeners, its timeline and its draft.
type ChatService struct {
	self       domain.Participant
	store      contract.IStore
	generator  *discovery.Generator
	listeners  *runtime.ListenerManager
	timeline   *projection.Timeline
	normalizer *normalize.Normalizer
	gate       *OutboundGate
	router     *SendRouter
	index      contract.IMessageIndex
	bus        contract.IBus
	now        func() time.Time
	log        *slog.Logger

	// sending serializes sends from the cap check until the echo is merged.
	// Store callbacks never take it.
	sending sync.Mutex

	mu            sync.RWMutex
	current       *domain.Conversation
	conversations []domain.Conversation
	drafts        map[string]string
	unregister    func()
}

func NewChatService(self domain.Participant, store contract.IStore, generator *discovery.Generator,
	listeners *runtime.ListenerManager, gate *OutboundGate, router *SendRouter,
	index contract.IMessageIndex, bus contract.IBus, log *slog.Logger) *ChatService {
	return &ChatService{
		self:       self,
		store:      store,
		generator:  generator,
		listeners:  listeners,
		timeline:   projection.NewTimeline(),
		normalizer: normalize.NewNormalizer(self.ID, nil),
		gate:       gate,
		router:     router,
		index:      index,
		bus:        bus,
		now:        time.Now,
		drafts:     make(map[string]string),
		log:        log,
	}
}

// Start registers the service on the bus, so that any component can ask for a conversation to be opened.
func (s *ChatService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unregister == nil {
		s.unregister = s.bus.Register("chat-service", s)
	}
}

// Close unregisters from the bus and releases the open conversation.
func (s *ChatService) Close() {
	s.mu.Lock()
	unregister := s.unregister
	s.unregister = nil
	s.current = nil
	s.mu.Unlock()

	if unregister != nil {
		unregister()
	}
	s.listeners.Close()
}

func (s *ChatService) Consume(ctx context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.OpenConversationRequested:
		_, err := s.OpenConversation(ctx, evt.CounterpartyID)
		return err
	case event.ConversationsRefreshed:
		s.mu.Lock()
		s.conversations = evt.Conversations
		s.mu.Unlock()
	}
	return nil
}

// OpenConversation switches to the conversation with counterpartyID, or with that conversation id.
// The previous conversation is fully released before anything of the new one is subscribed.
func (s *ChatService) OpenConversation(ctx context.Context, counterpartyID string) (domain.Conversation, error) {
	counterpartyID = strings.TrimSpace(counterpartyID)
	if counterpartyID == "" || counterpartyID == s.self.ID {
		return domain.Conversation{}, fmt.Errorf("%w: %q", errors.ErrInvalidCounterparty, counterpartyID)
	}

	// 1. Release the previous conversation
	conversation := s.resolve(counterpartyID)
	s.mu.Lock()
	generation := s.listeners.Begin()
	s.timeline.Reset(generation, conversation.ID)
	s.current = &conversation
	s.mu.Unlock()

	// 2. Candidate paths, this may explore the whole store
	candidates := make([]domain.PathCandidate, 0, len(conversation.DiscoveredPaths))
	for _, p := range conversation.DiscoveredPaths.Sorted() {
		candidates = append(candidates, domain.PathCandidate{Path: p, Origin: domain.OriginDiscovered})
	}
	candidates = append(candidates, s.generator.Candidates(ctx, s.self.ID, conversation.CounterpartyID, conversation.ID)...)
	candidates = lo.UniqBy(candidates, func(c domain.PathCandidate) domain.Path { return c.Path })

	// 3. A late exploration for an abandoned conversation is discarded
	if !s.listeners.IsCurrent(generation) {
		s.log.Debug("Conversation switched during discovery", "conversation", conversation.ID)
		return domain.Conversation{}, errors.ErrStaleConversation
	}
	s.bus.Publish(ctx, event.ConversationOpened{Conversation: conversation, Candidates: candidates, Generation: generation})

	// 4. Every candidate is subscribed, none is authoritative
	opened := s.listeners.Subscribe(ctx, generation, candidates, s.onSnapshot)
	s.log.Info("Conversation opened", "conversation", conversation.ID, "counterparty", conversation.CounterpartyID,
		"candidates", len(candidates), "listeners", opened)
	return conversation, nil
}

// resolve prefers the last refreshed list, and falls back to a direct chat.
func (s *ChatService) resolve(target string) domain.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conversations {
		if c.CounterpartyID == target || c.ID == target {
			c.DiscoveredPaths = domain.NewPathSet(c.DiscoveredPaths.Sorted()...)
			return c
		}
	}
	return domain.Conversation{
		ID:              domain.DirectConversationID(s.self.ID, target),
		CounterpartyID:  target,
		OwnerID:         s.self.ID,
		Subject:         domain.DirectChatTitle,
		Kind:            domain.KindDirect,
		DiscoveredPaths: domain.NewPathSet(),
	}
}

func (s *ChatService) onSnapshot(generation uint64, path domain.Path, snapshot any) {
	batch := s.normalizer.Batch(s.timeline.ConversationID(), path, snapshot)
	if len(batch) == 0 {
		return
	}
	s.apply(context.Background(), generation, batch)
}

func (s *ChatService) apply(ctx context.Context, generation uint64, batch []domain.Message) {
	messages, ok := s.timeline.Apply(generation, batch)
	if !ok {
		s.log.Debug("Stale batch dropped", "generation", generation, "count", len(batch))
		return
	}
	s.bus.Publish(ctx, event.MessagesMerged{ConversationID: s.timeline.ConversationID(), Messages: messages})
}

// SendMessage writes text in the open conversation. The local echo is merged
// before it returns. On any failure the draft is kept for a retry.
func (s *ChatService) SendMessage(ctx context.Context, conversationID, text string) (domain.Message, error) {
	s.sending.Lock()
	defer s.sending.Unlock()

	// 1. Only the open conversation accepts messages
	s.mu.Lock()
	if s.current == nil || s.current.ID != conversationID {
		s.mu.Unlock()
		return domain.Message{}, fmt.Errorf("%w: %s", errors.ErrNoOpenConversation, conversationID)
	}
	conversation := *s.current
	generation := s.timeline.Generation()
	s.drafts[conversationID] = text
	s.mu.Unlock()

	// 2. Business rules, before any store write
	decision, err := s.gate.Check(conversationID, text, s.timeline.CountByRole(domain.RoleSelf))
	if err != nil {
		return domain.Message{}, err
	}

	// 3. Route and write
	echo, err := s.router.Send(ctx, Outgoing{
		ConversationID: conversationID,
		Sender:         s.self,
		RecipientID:    conversation.CounterpartyID,
		Content:        decision.Content,
		CreatedAt:      s.now(),
		Known:          conversation.DiscoveredPaths.Sorted(),
	})
	if err != nil {
		s.log.Warn("Message not sent", "conversation", conversationID, "error", err)
		s.bus.Publish(ctx, event.MessageSendFailed{ConversationID: conversationID, Draft: text, Err: err})
		return domain.Message{}, err
	}

	// 4. Optimistic echo, collapsed with the stored copy by id
	s.apply(ctx, generation, []domain.Message{echo})
	s.mu.Lock()
	delete(s.drafts, conversationID)
	s.mu.Unlock()
	return echo, nil
}

// MarkAsRead flags every unread counterparty message of the open conversation
// as read, in the store and locally. It returns how many were marked.
func (s *ChatService) MarkAsRead(ctx context.Context) (int, error) {
	s.mu.RLock()
	open := s.current != nil
	s.mu.RUnlock()
	if !open {
		return 0, errors.ErrNoOpenConversation
	}
	generation := s.timeline.Generation()

	var marked []string
	var firstErr error
	for _, m := range s.timeline.Messages() {
		if m.SenderRole != domain.RoleCounterparty || m.Read || m.Volatile || m.Path.IsRoot() {
			continue
		}
		err := s.store.Update(ctx, m.Path, map[string]any{"read": true, "status": string(domain.StatusRead)})
		if err != nil {
			s.log.Warn("Mark as read failed", "path", m.Path, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
			}
			continue
		}
		marked = append(marked, m.ID)
	}
	if len(marked) > 0 {
		if messages, ok := s.timeline.MarkRead(generation, marked...); ok {
			s.bus.Publish(ctx, event.MessagesMerged{ConversationID: s.timeline.ConversationID(), Messages: messages})
		}
	}
	return len(marked), firstErr
}

func (s *ChatService) Search(ctx context.Context, query search.Query) ([]search.Hit, error) {
	if s.index == nil {
		return nil, nil
	}
	return s.index.Search(ctx, query)
}

func (s *ChatService) Messages() []domain.Message {
	return s.timeline.Messages()
}

func (s *ChatService) Conversations() []domain.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.Conversation, len(s.conversations))
	copy(res, s.conversations)
	return res
}

// Current returns the open conversation.
func (s *ChatService) Current() (domain.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.Conversation{}, false
	}
	return *s.current, true
}

func (s *ChatService) Draft(conversationID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drafts[conversationID]
}
