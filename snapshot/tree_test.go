package snapshot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDescend(t *testing.T) {
	req := require.New(t)
	tree := map[string]any{
		"chats": map[string]any{
			"C1": map[string]any{
				"U1": []any{"first", map[string]any{"content": "second"}},
			},
		},
	}

	node, ok := Descend(tree, "chats", "C1", "U1", "1", "content")
	req.True(ok)
	req.Equal("second", node)

	_, ok = Descend(tree, "chats", "C2")
	req.False(ok)

	_, ok = Descend(tree, "chats", "C1", "U1", "7")
	req.False(ok)

	_, ok = Descend("leaf", "anything")
	req.False(ok)
}

func TestInsert_Creates_Intermediate_Nodes(t *testing.T) {
	req := require.New(t)
	root := map[string]any{"chats": "legacy scalar"}

	Insert(root, []string{"chats", "C1", "m1"}, map[string]any{"content": "hola"})

	node, ok := Descend(root, "chats", "C1", "m1", "content")
	req.True(ok)
	req.Equal("hola", node)
}

func TestChildKeys_Are_Sorted(t *testing.T) {
	req := require.New(t)
	req.Equal([]string{"a", "b", "c"}, ChildKeys(map[string]any{"c": 1, "a": 2, "b": 3}))
	req.Equal([]string{"0", "1"}, ChildKeys([]any{"x", "y"}))
	req.Nil(ChildKeys("leaf"))
}

func TestClone_Is_Deep(t *testing.T) {
	req := require.New(t)
	original := map[string]any{"a": map[string]any{"b": []any{"c"}}}

	cloned := Clone(original).(map[string]any)
	cloned["a"].(map[string]any)["b"].([]any)[0] = "changed"

	req.Equal("c", original["a"].(map[string]any)["b"].([]any)[0])
}
