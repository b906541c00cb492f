// Package runtime holds the in-process plumbing of the engine: the event bus,
// the subscription groups and the listener manager.
package runtime

import (
	"chat-sync/contract"
	"chat-sync/domain/event"
	"context"
	"log/slog"
	"sort"
	"sync"
)

type registration struct {
	name string
	sink contract.EventSink
}

// Bus delivers domain events to registered sinks, synchronously and in
// registration order. A component registers on mount and calls the returned
// func on unmount, nothing stays registered globally.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	sinks  map[uint64]registration
	log    *slog.Logger
}

func NewBus(log *slog.Logger) *Bus {
	return &Bus{sinks: make(map[uint64]registration), log: log}
}

// Register adds a sink. The returned func unregisters it and is idempotent.
func (b *Bus) Register(name string, sink contract.EventSink) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.sinks[id] = registration{name: name, sink: sink}
	b.log.Debug("Sink registered", "name", name)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.sinks, id)
			b.log.Debug("Sink unregistered", "name", name)
		})
	}
}

// Publish never holds the lock while a sink consumes, sinks may publish in turn.
// A failing sink is logged and does not stop the others.
func (b *Bus) Publish(ctx context.Context, e event.DomainEvent) {
	for _, r := range b.registrations() {
		if err := r.sink.Consume(ctx, e); err != nil {
			b.log.Warn("Sink failed", "name", r.name, "event", e.Name(), "error", err)
		}
	}
}

// Len returns the number of registered sinks.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sinks)
}

func (b *Bus) registrations() []registration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]uint64, 0, len(b.sinks))
	for id := range b.sinks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	res := make([]registration, len(ids))
	for i, id := range ids {
		res[i] = b.sinks[id]
	}
	return res
}
