// Package projection builds the canonical message list of the open conversation.
// Handles ordering, deduplication and staleness.
// Does not talk to the store.
package projection

import (
	"chat-sync/domain"
	"sort"
	"sync"
)

// Merge folds incoming into existing, keyed by message id.
// The first writer of an id wins, only Read (logical or) and Status (forward only)
// may change afterwards. The result is sorted by timestamp, then id, so that
// merge order and repeated batches never change the outcome.
func Merge(existing, incoming []domain.Message) []domain.Message {
	byID := make(map[string]domain.Message, len(existing)+len(incoming))
	for _, m := range existing {
		fold(byID, m)
	}
	for _, m := range incoming {
		fold(byID, m)
	}

	res := make([]domain.Message, 0, len(byID))
	for _, m := range byID {
		res = append(res, m)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Timestamp != res[j].Timestamp {
			return res[i].Timestamp < res[j].Timestamp
		}
		return res[i].ID < res[j].ID
	})
	return res
}

func fold(byID map[string]domain.Message, m domain.Message) {
	if m.ID == "" {
		return
	}
	prev, ok := byID[m.ID]
	if !ok {
		m.Status = m.Status.Advance("")
		byID[m.ID] = m
		return
	}
	prev.Read = prev.Read || m.Read
	prev.Status = prev.Status.Advance(m.Status)
	byID[m.ID] = prev
}

// Timeline owns the canonical list of the open conversation.
// Every batch carries the generation it was produced for, a batch from a
// previous generation is dropped before touching the list.
type Timeline struct {
	mu             sync.RWMutex
	generation     uint64
	conversationID string
	messages       []domain.Message
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

// Reset empties the list for a newly opened conversation.
func (t *Timeline) Reset(generation uint64, conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generation = generation
	t.conversationID = conversationID
	t.messages = nil
}

// Apply merges batch and returns a copy of the new list.
// It returns false, and leaves the list untouched, when generation is stale.
func (t *Timeline) Apply(generation uint64, batch []domain.Message) ([]domain.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if generation != t.generation {
		return nil, false
	}
	t.messages = Merge(t.messages, batch)
	return t.snapshot(), true
}

// MarkRead flags the given messages as read and returns the new list.
func (t *Timeline) MarkRead(generation uint64, ids ...string) ([]domain.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if generation != t.generation {
		return nil, false
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	for i, m := range t.messages {
		if _, ok := wanted[m.ID]; ok {
			t.messages[i].Read = true
			t.messages[i].Status = m.Status.Advance(domain.StatusRead)
		}
	}
	return t.snapshot(), true
}

func (t *Timeline) Messages() []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot()
}

func (t *Timeline) ConversationID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conversationID
}

func (t *Timeline) Generation() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.generation
}

func (t *Timeline) CountByRole(role domain.SenderRole) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := 0
	for _, m := range t.messages {
		if m.SenderRole == role {
			total++
		}
	}
	return total
}

func (t *Timeline) snapshot() []domain.Message {
	res := make([]domain.Message, len(t.messages))
	copy(res, t.messages)
	return res
}
