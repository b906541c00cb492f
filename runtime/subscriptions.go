package runtime

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"sync"
)

// SubscriptionGroup is a scoped set of live subscriptions released in bulk.
// Once closed, any subscription added to it is torn down right away.
type SubscriptionGroup struct {
	mu     sync.Mutex
	subs   []contract.Subscription
	closed bool
}

func NewSubscriptionGroup() *SubscriptionGroup {
	return &SubscriptionGroup{}
}

// Add reports false when the group was already closed.
func (g *SubscriptionGroup) Add(sub contract.Subscription) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		sub.Teardown()
		return false
	}
	g.subs = append(g.subs, sub)
	g.mu.Unlock()
	return true
}

// Close tears down every subscription before returning.
func (g *SubscriptionGroup) Close() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.closed = true
	g.mu.Unlock()

	for _, sub := range subs {
		sub.Teardown()
	}
}

func (g *SubscriptionGroup) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

func (g *SubscriptionGroup) Paths() []domain.Path {
	g.mu.Lock()
	defer g.mu.Unlock()
	res := make([]domain.Path, len(g.subs))
	for i, sub := range g.subs {
		res[i] = sub.Path()
	}
	return res
}
