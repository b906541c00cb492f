package services

import (
	"chat-sync/contract"
	"chat-sync/discovery"
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/mocks"
	"chat-sync/repositories"
	"context"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func marketplaceRoot() map[string]any {
	return map[string]any{
		"users": map[string]any{"C1": map[string]any{"name": "Carla"}},
		"chats": map[string]any{
			"C1": map[string]any{
				"U1": map[string]any{"m1": map[string]any{"content": "hola", "senderId": "U1", "recipientId": "C1", "timestamp": int64(100)}},
			},
			"U2": map[string]any{
				"C1": map[string]any{"m2": map[string]any{"content": "oferta", "senderId": "C1", "recipientId": "U2", "timestamp": int64(300)}},
			},
		},
		"deliveryChats": map[string]any{
			"order-7": map[string]any{"k1": map[string]any{"message": "en camino", "sender": "delivery", "timestamp": int64(200)}},
			"order-9": map[string]any{"k1": map[string]any{"message": "otro", "sender": "delivery", "timestamp": int64(400)}},
		},
	}
}

func TestConversationListBuilder_Build(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	registry := mocks.NewMockIRegistry(ctrl)
	store := repositories.NewMemoryStore(log)
	req.NoError(store.Set(ctx, "", marketplaceRoot()))

	// Given one owned request and one request of somebody else
	registry.EXPECT().QueryByField(gomock.Any(), "requests", "clientId", "C1").Return([]contract.Document{
		{ID: "order-7", Fields: map[string]any{"clientId": "C1", "companyId": "U7", "companyName": "Rápido SA", "title": "Mudanza"}},
	}, nil)
	registry.EXPECT().GetByID(gomock.Any(), "requests", "order-9").Return(contract.Document{
		ID: "order-9", Fields: map[string]any{"clientId": "C9", "companyId": "U8"},
	}, nil)

	builder := NewConversationListBuilder(store, registry, discovery.NewExplorer(nil, 0, log), carla, DefaultRegistrySchema(), log)

	// When
	conversations, err := builder.Build(ctx)

	// Then newest first, foreign request dropped
	req.NoError(err)
	req.Equal([]string{"C1_U2", "order-7", "C1_U1"}, lo.Map(conversations, func(c domain.Conversation, _ int) string { return c.ID }))

	direct := conversations[0]
	req.Equal(domain.KindDirect, direct.Kind)
	req.Equal(domain.DirectChatTitle, direct.Subject)
	req.Equal("U2", direct.CounterpartyID)
	req.Equal("oferta", direct.LastMessage)
	req.Equal(0, direct.UnreadCount)
	req.True(direct.DiscoveredPaths.Contains("chats/U2/C1"))

	request := conversations[1]
	req.Equal(domain.KindRequest, request.Kind)
	req.Equal("Mudanza", request.Subject)
	req.Equal("U7", request.CounterpartyID)
	req.Equal("Rápido SA", request.CounterpartyName)
	req.Equal(int64(200), request.LastMessageTime)
	req.Equal(1, request.UnreadCount)
	req.True(request.DiscoveredPaths.Contains("deliveryChats/order-7"))

	req.Equal("U1", conversations[2].CounterpartyID)
	req.Equal(1, conversations[2].UnreadCount)
}

func TestConversationListBuilder_EmptyRoot(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	registry := mocks.NewMockIRegistry(ctrl)
	store := repositories.NewMemoryStore(log)
	builder := NewConversationListBuilder(store, registry, discovery.NewExplorer(nil, 0, log), carla, DefaultRegistrySchema(), log)

	// Given no chat-like container at all
	req.NoError(store.Set(ctx, "", map[string]any{"users": map[string]any{"C1": map[string]any{"name": "Carla"}}}))

	conversations, err := builder.Build(ctx)

	// Then the registry is never queried and the list is empty
	req.NoError(err)
	req.NotNil(conversations)
	req.Empty(conversations)
}

func TestConversationListBuilder_RegistryFailureDegrades(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	registry := mocks.NewMockIRegistry(ctrl)
	store := repositories.NewMemoryStore(log)
	req.NoError(store.Set(ctx, "", marketplaceRoot()))

	registry.EXPECT().QueryByField(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.ErrStoreUnavailable)
	registry.EXPECT().GetByID(gomock.Any(), "requests", gomock.Any()).Return(contract.Document{}, errors.ErrNotFound).Times(2)

	builder := NewConversationListBuilder(store, registry, discovery.NewExplorer(nil, 0, log), carla, DefaultRegistrySchema(), log)

	conversations, err := builder.Build(ctx)

	// Then pair containers are still listed as direct chats
	req.NoError(err)
	req.Len(conversations, 2)
	for _, c := range conversations {
		req.Equal(domain.KindDirect, c.Kind)
	}
}
