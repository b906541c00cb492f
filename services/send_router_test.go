package services

import (
	"chat-sync/discovery"
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/mocks"
	"chat-sync/repositories"
	"chat-sync/snapshot"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var carla = domain.Participant{ID: "C1", DisplayName: "Carla"}

func outgoing(content string) Outgoing {
	return Outgoing{
		ConversationID: "C1_U1",
		Sender:         carla,
		RecipientID:    "U1",
		Content:        content,
		CreatedAt:      time.UnixMilli(1700000000000),
	}
}

func TestSendRouter_WritesToConfirmedCandidate(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := repositories.NewMemoryStore(log)

	// Given the pair already talks under a non-template path
	req.NoError(store.Set(ctx, "deliveryMessages/U1/C1/m0", map[string]any{"content": "hola", "senderId": "U1"}))
	generator := discovery.NewGenerator(store, nil, discovery.NewExplorer(nil, 0, log), log)
	router := NewSendRouter(store, generator, nil, log)

	// When
	echo, err := router.Send(ctx, outgoing("¿Llega hoy?"))

	// Then the message joins the existing container
	req.NoError(err)
	req.Equal(domain.Path("deliveryMessages/U1/C1/"+echo.ID), echo.Path)
	req.Equal(domain.StatusSent, echo.Status)
	req.Equal(domain.RoleSelf, echo.SenderRole)
	req.Equal(int64(1700000000000), echo.Timestamp)

	stored, err := store.Read(ctx, echo.Path)
	req.NoError(err)
	req.Equal("¿Llega hoy?", stored.(map[string]any)["content"])
	req.Equal("user", stored.(map[string]any)["sender"])
	req.Equal(int64(1700000000000), stored.(map[string]any)["timestamp"])
}

func TestSendRouter_RequestContainerWinsOverDirectChat(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := repositories.NewMemoryStore(log)
	index := mocks.NewMockIPathIndex(ctrl)

	// Given a request chat and a direct chat with the same counterparty
	req.NoError(store.Set(ctx, "deliveryChats/order-7/k1", map[string]any{"message": "en camino", "sender": "delivery"}))
	req.NoError(store.Set(ctx, "chats/C1/U1/m1", map[string]any{"content": "hola", "senderId": "U1"}))
	index.EXPECT().Lookup(gomock.Any(), "C1", "U1").Return(nil, nil)
	// Then the request container is never remembered for the pair
	index.EXPECT().Remember(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	generator := discovery.NewGenerator(store, index, nil, log)
	router := NewSendRouter(store, generator, index, log)
	out := outgoing("¿A qué hora llega?")
	out.ConversationID = "order-7"
	out.Known = []domain.Path{"deliveryChats/order-7"}

	// When
	echo, err := router.Send(ctx, out)

	// Then the reply lands where the conversation listens
	req.NoError(err)
	req.Equal(domain.Path("deliveryChats/order-7").Child(echo.ID), echo.Path)
	node, err := store.Read(ctx, "deliveryChats/order-7")
	req.NoError(err)
	req.Len(snapshot.ChildKeys(node), 2)
	direct, err := store.Read(ctx, "chats/C1/U1")
	req.NoError(err)
	req.Len(snapshot.ChildKeys(direct), 1)
}

func TestSendRouter_FirstTemplateWhenNothingConfirmed(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := repositories.NewMemoryStore(log)
	generator := discovery.NewGenerator(store, nil, discovery.NewExplorer(nil, 0, log), log)
	router := NewSendRouter(store, generator, nil, log)

	echo, err := router.Send(ctx, outgoing("hola"))

	req.NoError(err)
	req.Equal(domain.Path("chats/C1/U1").Child(echo.ID), echo.Path)
	node, err := store.Read(ctx, "chats/C1/U1")
	req.NoError(err)
	req.Len(snapshot.ChildKeys(node), 1)
}

func TestSendRouter_FallsBackThroughTemplates(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := mocks.NewMockIStore(ctrl)
	index := mocks.NewMockIPathIndex(ctrl)

	// Given nothing confirmed and the first template refusing writes
	index.EXPECT().Lookup(gomock.Any(), "C1", "U1").Return(nil, nil)
	store.EXPECT().Read(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	gomock.InOrder(
		store.EXPECT().Append(gomock.Any(), domain.Path("chats/C1/U1"), gomock.Any()).Return("", fmt.Errorf("permission denied")),
		store.EXPECT().Append(gomock.Any(), domain.Path("chats/U1/C1"), gomock.Any()).Return("push-2", nil),
	)
	// Then the successful path is remembered
	index.EXPECT().Remember(gomock.Any(), "C1", "U1", domain.Path("chats/U1/C1")).Return(nil)

	generator := discovery.NewGenerator(store, index, discovery.NewExplorer(nil, 0, log), log)
	router := NewSendRouter(store, generator, index, log)

	echo, err := router.Send(ctx, outgoing("hola"))

	req.NoError(err)
	req.Equal("push-2", echo.ID)
	req.Equal(domain.Path("chats/U1/C1/push-2"), echo.Path)
}

func TestSendRouter_Exhausted(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := mocks.NewMockIStore(ctrl)

	store.EXPECT().Read(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("offline")).AnyTimes()
	// Then each template is attempted exactly once
	store.EXPECT().Append(gomock.Any(), gomock.Any(), gomock.Any()).Return("", fmt.Errorf("offline")).Times(10)

	generator := discovery.NewGenerator(store, nil, discovery.NewExplorer(nil, 0, log), log)
	router := NewSendRouter(store, generator, nil, log)

	_, err := router.Send(ctx, outgoing("hola"))

	req.True(errors.Is(err, errors.ErrWriteFailed))
}
