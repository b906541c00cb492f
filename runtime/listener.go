package runtime

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

type State string

const (
	StateIdle        State = "idle"
	StateSubscribing State = "subscribing"
	StateActive      State = "active"
)

// Delivery receives a snapshot of one candidate path for the generation it was opened for.
type Delivery func(generation uint64, path domain.Path, snapshot any)

// ListenerManager owns the subscriptions of the open conversation.
// Switching conversations tears every previous subscription down before the
// next ones are opened, and payloads of an older generation never reach the
// delivery callback.
type ListenerManager struct {
	mu         sync.Mutex
	store      contract.IStore
	generation atomic.Uint64
	state      State
	group      *SubscriptionGroup
	log        *slog.Logger
}

func NewListenerManager(store contract.IStore, log *slog.Logger) *ListenerManager {
	return &ListenerManager{store: store, state: StateIdle, log: log}
}

// Begin releases the current conversation and returns the generation of the next one.
// All previous subscriptions are torn down when Begin returns.
func (l *ListenerManager) Begin() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.release()
	return l.generation.Add(1)
}

// Close releases the current conversation and goes back to idle.
func (l *ListenerManager) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.release()
	l.generation.Add(1)
}

// release must be called with mu held.
func (l *ListenerManager) release() {
	if l.group != nil {
		l.log.Debug("Releasing subscriptions", "count", l.group.Len(), "generation", l.generation.Load())
		l.group.Close()
		l.group = nil
	}
	l.state = StateIdle
}

// Subscribe opens one independent subscription per candidate and returns how many are live.
// A failing path is logged and skipped, its siblings are not affected.
func (l *ListenerManager) Subscribe(ctx context.Context, generation uint64, candidates []domain.PathCandidate, deliver Delivery) int {
	l.mu.Lock()
	if generation != l.generation.Load() {
		l.mu.Unlock()
		l.log.Debug("Subscribe skipped, generation is stale", "generation", generation)
		return 0
	}
	if l.group == nil {
		l.group = NewSubscriptionGroup()
	}
	group := l.group
	l.state = StateSubscribing
	l.mu.Unlock()

	var opened atomic.Int32
	var g errgroup.Group
	for _, candidate := range candidates {
		path := candidate.Path
		g.Go(func() error {
			sub, err := l.store.Subscribe(ctx, path, func(snapshot any) {
				if !l.IsCurrent(generation) {
					l.log.Debug("Stale payload dropped", "path", path, "generation", generation)
					return
				}
				deliver(generation, path, snapshot)
			})
			if err != nil {
				l.log.Warn("Subscription failed", "path", path, "error", fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err))
				return nil
			}
			if !group.Add(sub) {
				l.log.Debug("Subscription closed on arrival", "path", path, "generation", generation)
				return nil
			}
			opened.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	l.mu.Lock()
	if l.group == group && l.IsCurrent(generation) {
		l.state = StateActive
	}
	l.mu.Unlock()
	l.log.Debug("Subscriptions opened", "generation", generation, "opened", opened.Load(), "candidates", len(candidates))
	return int(opened.Load())
}

func (l *ListenerManager) IsCurrent(generation uint64) bool {
	return l.generation.Load() == generation
}

func (l *ListenerManager) Generation() uint64 {
	return l.generation.Load()
}

func (l *ListenerManager) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// ActivePaths lists the paths currently subscribed.
func (l *ListenerManager) ActivePaths() []domain.Path {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.group == nil {
		return nil
	}
	return l.group.Paths()
}
