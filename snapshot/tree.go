// Package snapshot holds helpers to walk the loosely typed trees returned by the store.
// A tree is made of map[string]any, []any and scalar leaves.
package snapshot

import (
	"sort"
	"strconv"
)

// Descend follows segments from node. Arrays are addressed by their decimal index.
// A missing step reports false, it is never an error.
func Descend(node any, segments ...string) (any, bool) {
	current := node
	for _, segment := range segments {
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(typed) {
				return nil, false
			}
			current = typed[idx]
		default:
			return nil, false
		}
	}
	return current, current != nil
}

// Insert sets value at segments below root, replacing scalar nodes met on the way.
func Insert(root map[string]any, segments []string, value any) {
	if len(segments) == 0 {
		return
	}
	node := root
	for _, segment := range segments[:len(segments)-1] {
		child, ok := node[segment].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[segment] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
}

// ChildKeys returns the keys of a map node in lexical order, or the indexes of an array node.
func ChildKeys(node any) []string {
	switch typed := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for k := range typed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	case []any:
		keys := make([]string, 0, len(typed))
		for i := range typed {
			keys = append(keys, strconv.Itoa(i))
		}
		return keys
	default:
		return nil
	}
}

// Clone deep copies maps and slices so that callers can keep a snapshot
// while the store keeps mutating.
func Clone(node any) any {
	switch typed := node.(type) {
	case map[string]any:
		res := make(map[string]any, len(typed))
		for k, v := range typed {
			res[k] = Clone(v)
		}
		return res
	case []any:
		res := make([]any, len(typed))
		for i, v := range typed {
			res[i] = Clone(v)
		}
		return res
	default:
		return typed
	}
}

// IsContainer reports whether the node can hold children.
func IsContainer(node any) bool {
	switch node.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}
