package repositories

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"strings"
	"sync"
	"sync/atomic"
)

// notifier keeps the in-process subscribers of a store and tells which of
// them are concerned by a write.
type notifier struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscription
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[uint64]*subscription)}
}

type subscription struct {
	id       uint64
	path     domain.Path
	onValue  contract.OnValue
	active   atomic.Bool
	once     sync.Once
	teardown func()
}

func (s *subscription) Path() domain.Path { return s.path }

func (s *subscription) Teardown() {
	s.once.Do(func() {
		s.active.Store(false)
		if s.teardown != nil {
			s.teardown()
		}
	})
}

func (n *notifier) add(path domain.Path, onValue contract.OnValue) *subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	sub := &subscription{id: n.nextID, path: path, onValue: onValue}
	sub.active.Store(true)
	sub.teardown = func() { n.remove(sub.id) }
	n.subs[sub.id] = sub
	return sub
}

func (n *notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, id)
}

// affected returns the live subscribers whose path is an ancestor of, equal to,
// or below the changed path.
func (n *notifier) affected(changed domain.Path) []*subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	var res []*subscription
	for _, sub := range n.subs {
		if related(sub.path, changed) {
			res = append(res, sub)
		}
	}
	return res
}

func (n *notifier) count(path domain.Path) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, sub := range n.subs {
		if sub.path == path {
			total++
		}
	}
	return total
}

// deliver pushes a fresh read to every subscriber concerned by the change.
// It must be called without holding any store lock.
func (n *notifier) deliver(changed domain.Path, read func(domain.Path) any) {
	for _, sub := range n.affected(changed) {
		if !sub.active.Load() {
			continue
		}
		sub.onValue(read(sub.path))
	}
}

func related(a, b domain.Path) bool {
	if a == b || a.IsRoot() || b.IsRoot() {
		return true
	}
	return strings.HasPrefix(string(b), string(a)+"/") || strings.HasPrefix(string(a), string(b)+"/")
}
