package runtime

import (
	"chat-sync/domain"
	"chat-sync/mocks"
	"chat-sync/repositories"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type collected struct {
	mu    sync.Mutex
	byGen map[uint64][]domain.Path
}

func newCollected() *collected {
	return &collected{byGen: make(map[uint64][]domain.Path)}
}

func (c *collected) deliver(generation uint64, path domain.Path, _ any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byGen[generation] = append(c.byGen[generation], path)
}

func (c *collected) count(generation uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byGen[generation])
}

func candidates(paths ...domain.Path) []domain.PathCandidate {
	res := make([]domain.PathCandidate, len(paths))
	for i, p := range paths {
		res[i] = domain.PathCandidate{Path: p, Origin: domain.OriginTemplate}
	}
	return res
}

func TestListenerManager_SwitchLeavesNoHandles(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := repositories.NewMemoryStore(log)
	manager := NewListenerManager(store, log)
	got := newCollected()
	first := []domain.Path{"chats/C1/U1", "messages/C1/U1", "chats/C1_U1"}

	// Given a first conversation subscribed on three paths
	gen1 := manager.Begin()
	req.Equal(StateIdle, manager.State())
	opened := manager.Subscribe(ctx, gen1, candidates(first...), got.deliver)
	req.Equal(3, opened)
	req.Equal(StateActive, manager.State())
	for _, p := range first {
		req.Equal(1, store.SubscriberCount(p))
	}

	// When switching to another conversation
	gen2 := manager.Begin()
	manager.Subscribe(ctx, gen2, candidates("chats/C1/U2"), got.deliver)

	// Then no handle of the previous conversation survives
	for _, p := range first {
		req.Equal(0, store.SubscriberCount(p))
	}
	req.Equal([]domain.Path{"chats/C1/U2"}, manager.ActivePaths())

	// And writes on old paths are not delivered anymore
	before := got.count(gen1)
	req.NoError(store.Set(ctx, "chats/C1/U1/m1", map[string]any{"content": "late"}))
	req.Equal(before, got.count(gen1))
}

func TestListenerManager_StaleGenerationIsNotSubscribed(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := repositories.NewMemoryStore(log)
	manager := NewListenerManager(store, log)
	got := newCollected()

	stale := manager.Begin()
	manager.Begin()

	// When an exploration result arrives for an abandoned generation
	opened := manager.Subscribe(ctx, stale, candidates("chats/C1/U1"), got.deliver)

	// Then nothing is opened
	req.Equal(0, opened)
	req.Equal(0, store.SubscriberCount("chats/C1/U1"))
}

func TestListenerManager_FailingPathIsIsolated(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := mocks.NewMockIStore(ctrl)
	sub := mocks.NewMockSubscription(ctrl)
	manager := NewListenerManager(store, log)

	// Given one path failing and one path succeeding
	store.EXPECT().Subscribe(gomock.Any(), domain.Path("broken"), gomock.Any()).Return(nil, fmt.Errorf("permission denied"))
	store.EXPECT().Subscribe(gomock.Any(), domain.Path("chats/C1/U1"), gomock.Any()).Return(sub, nil)
	sub.EXPECT().Path().Return(domain.Path("chats/C1/U1")).AnyTimes()
	sub.EXPECT().Teardown().Times(1)

	gen := manager.Begin()
	opened := manager.Subscribe(ctx, gen, candidates("broken", "chats/C1/U1"), func(uint64, domain.Path, any) {})

	// Then the sibling stays live until close
	req.Equal(1, opened)
	req.Equal(StateActive, manager.State())
	manager.Close()
	req.Equal(StateIdle, manager.State())
	req.Empty(manager.ActivePaths())
}

func TestListenerManager_DeliversInitialValue(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := repositories.NewMemoryStore(log)
	req.NoError(store.Set(ctx, "chats/C1/U1/m1", map[string]any{"content": "hola"}))
	manager := NewListenerManager(store, log)
	got := newCollected()

	gen := manager.Begin()
	manager.Subscribe(ctx, gen, candidates("chats/C1/U1", "chats/U1/C1"), got.deliver)

	// Then each candidate delivered its current value once
	req.Equal(2, got.count(gen))

	// When a message is appended on one path
	_, err := store.Append(ctx, "chats/C1/U1", map[string]any{"content": "otra"})
	req.NoError(err)
	req.Equal(3, got.count(gen))
}
