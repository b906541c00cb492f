package repositories

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/snapshot"
	"context"
	"log/slog"
	"sync"
)

// MemoryStore is an in-process hierarchical store. Writes notify the
// subscribers synchronously, in the goroutine of the writer, once the
// internal lock is released.
type MemoryStore struct {
	mu       sync.RWMutex
	root     map[string]any
	notifier *notifier
	log      *slog.Logger
}

func NewMemoryStore(log *slog.Logger) *MemoryStore {
	return &MemoryStore{
		root:     make(map[string]any),
		notifier: newNotifier(),
		log:      log,
	}
}

func (s *MemoryStore) Read(_ context.Context, path domain.Path) (any, error) {
	return s.read(path), nil
}

func (s *MemoryStore) read(path domain.Path) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := snapshot.Descend(s.root, path.Segments()...)
	if !ok {
		return nil
	}
	return snapshot.Clone(node)
}

// Subscribe delivers the current value right away, then every change related to path.
func (s *MemoryStore) Subscribe(_ context.Context, path domain.Path, onValue contract.OnValue) (contract.Subscription, error) {
	sub := s.notifier.add(path, onValue)
	onValue(s.read(path))
	return sub, nil
}

func (s *MemoryStore) Append(ctx context.Context, path domain.Path, record map[string]any) (string, error) {
	id := NewPushID()
	if err := s.Set(ctx, path.Child(id), record); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Update(_ context.Context, path domain.Path, fields map[string]any) error {
	s.mu.Lock()
	for field, value := range fields {
		snapshot.Insert(s.root, path.Child(field).Segments(), snapshot.Clone(value))
	}
	s.mu.Unlock()
	s.notifier.deliver(path, s.read)
	return nil
}

// Set replaces the node at path. Setting the root replaces the whole tree.
func (s *MemoryStore) Set(_ context.Context, path domain.Path, value any) error {
	s.mu.Lock()
	if path.IsRoot() {
		root, ok := snapshot.Clone(value).(map[string]any)
		if !ok {
			s.mu.Unlock()
			return errInvalidRoot
		}
		s.root = root
	} else {
		snapshot.Insert(s.root, path.Segments(), snapshot.Clone(value))
	}
	s.mu.Unlock()
	s.log.Debug("Node written", "path", path)
	s.notifier.deliver(path, s.read)
	return nil
}

// SubscriberCount returns the number of live subscriptions on exactly path.
func (s *MemoryStore) SubscriberCount(path domain.Path) int {
	return s.notifier.count(path)
}
