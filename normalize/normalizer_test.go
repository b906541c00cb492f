package normalize

import (
	"chat-sync/domain"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 10, 18, 30, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return NewNormalizer("C1", func() time.Time { return fixedNow })
}

func TestNormalize_CanonicalRecord(t *testing.T) {
	req := require.New(t)
	n := newTestNormalizer()

	// Given a record written by the counterparty
	raw := map[string]any{"content": "hola", "senderId": "U1", "timestamp": float64(1700000000000)}

	// When
	result := n.Normalize("conv-1", "m1", raw)

	// Then
	req.True(result.IsRecognized())
	req.Equal(domain.Message{
		ID:             "m1",
		ConversationID: "conv-1",
		Content:        "hola",
		SenderID:       "U1",
		SenderRole:     domain.RoleCounterparty,
		Timestamp:      1700000000000,
		Status:         domain.StatusSent,
	}, result.Message)
}

func TestNormalize_SelfRole(t *testing.T) {
	req := require.New(t)
	n := newTestNormalizer()

	result := n.Normalize("conv-1", "m2", map[string]any{"text": "hi", "fromId": "C1", "toId": "U1"})

	req.True(result.IsRecognized())
	req.Equal(domain.RoleSelf, result.Message.SenderRole)
	req.Equal("U1", result.Message.RecipientID)
}

func TestNormalize_LegacyDeliveryShape(t *testing.T) {
	req := require.New(t)
	n := newTestNormalizer()

	// Given delivery chat records with a role tag, a "message" field and an hh:mm time
	mine := n.Normalize("order-1", "k1", map[string]any{"message": "¿Dónde está?", "sender": "user", "timestamp": "09:15"})
	theirs := n.Normalize("order-1", "k2", map[string]any{"message": "En camino", "sender": "delivery", "read": true})

	// Then
	req.True(mine.IsRecognized())
	req.Equal(domain.RoleSelf, mine.Message.SenderRole)
	req.Empty(mine.Message.SenderID)
	req.Equal(time.Date(2024, 5, 10, 9, 15, 0, 0, time.UTC).UnixMilli(), mine.Message.Timestamp)

	req.True(theirs.IsRecognized())
	req.Equal(domain.RoleCounterparty, theirs.Message.SenderRole)
	req.True(theirs.Message.Read)
	req.Equal(domain.StatusRead, theirs.Message.Status)
}

func TestNormalize_ContentFallback(t *testing.T) {
	req := require.New(t)
	n := newTestNormalizer()

	// Given no known content field, denylisted strings are skipped
	raw := map[string]any{"id": "x", "status": "sent", "type": "msg", "userId": "U1", "zmsg": "free text"}

	result := n.Normalize("conv-1", "m3", raw)

	req.True(result.IsRecognized())
	req.Equal("free text", result.Message.Content)
	req.Equal("U1", result.Message.SenderID)
}

func TestNormalize_Rejection(t *testing.T) {
	tests := []struct {
		name       string
		raw        any
		recognized bool
	}{
		{name: "metadata only", raw: map[string]any{"id": "x", "type": "meta", "status": "sent"}, recognized: false},
		{name: "timestamps only", raw: map[string]any{"timestamp": float64(1), "createdAt": "2024-01-01"}, recognized: false},
		{name: "blank content", raw: map[string]any{"content": "   "}, recognized: false},
		{name: "scalar", raw: "hello", recognized: false},
		{name: "nil", raw: nil, recognized: false},
		{name: "content without sender", raw: map[string]any{"body": "orphan"}, recognized: true},
		{name: "sender without content", raw: map[string]any{"authorId": "U1"}, recognized: true},
		{name: "role tag without content", raw: map[string]any{"sender": "company"}, recognized: true},
	}
	n := newTestNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := n.Normalize("conv-1", "k", tt.raw)
			require.Equal(t, tt.recognized, result.IsRecognized())
		})
	}
}

func TestNormalize_Timestamps(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]any
		expected int64
	}{
		{name: "millis", raw: map[string]any{"timestamp": float64(1700000000000)}, expected: 1700000000000},
		{name: "seconds object", raw: map[string]any{"createdAt": map[string]any{"seconds": float64(1700000000), "nanoseconds": float64(5e6)}}, expected: 1700000000005},
		{name: "rfc3339", raw: map[string]any{"date": "2024-01-02T03:04:05Z"}, expected: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli()},
		{name: "plain date", raw: map[string]any{"time": "2024-01-02"}, expected: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).UnixMilli()},
		{name: "millis string", raw: map[string]any{"sentAt": "1700000000000"}, expected: 1700000000000},
		{name: "garbage falls back to now", raw: map[string]any{"timestamp": "soon"}, expected: fixedNow.UnixMilli()},
		{name: "missing falls back to now", raw: map[string]any{}, expected: fixedNow.UnixMilli()},
	}
	n := newTestNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.raw["content"] = "x"
			result := n.Normalize("conv-1", "k", tt.raw)
			require.Equal(t, tt.expected, result.Message.Timestamp)
		})
	}
}

func TestNormalize_Identity(t *testing.T) {
	req := require.New(t)
	n := newTestNormalizer()

	// Given keys that are not store ids
	byField := n.Normalize("conv-1", "0", map[string]any{"content": "a", "id": "abc"})
	first := n.Normalize("conv-1", "undefined", map[string]any{"content": "b"})
	second := n.Normalize("conv-1", "", map[string]any{"content": "b"})

	// Then the record id is used, or a volatile id is synthesized and never reused
	req.Equal("abc", byField.Message.ID)
	req.False(byField.Message.Volatile)
	req.True(first.Message.Volatile)
	req.True(strings.HasPrefix(first.Message.ID, "local-"))
	req.NotEqual(first.Message.ID, second.Message.ID)
}

func TestNormalizer_Batch(t *testing.T) {
	req := require.New(t)
	n := newTestNormalizer()

	// Given a container mixing messages and metadata
	container := map[string]any{
		"m1":   map[string]any{"content": "hola", "senderId": "U1", "timestamp": float64(2)},
		"m2":   map[string]any{"content": "qué tal", "senderId": "C1", "timestamp": float64(1)},
		"meta": map[string]any{"type": "header"},
	}

	// When
	messages := n.Batch("conv-1", "chats/C1/U1", container)

	// Then
	req.Len(messages, 2)
	req.Equal(domain.Path("chats/C1/U1/m1"), messages[0].Path)
	req.Equal(domain.Path("chats/C1/U1/m2"), messages[1].Path)
	req.Empty(n.Batch("conv-1", "chats/C1/U1", nil))
}
