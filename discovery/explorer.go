// Package discovery finds where the messages of a participant pair live in a
// store whose layout is not known in advance.
package discovery

import (
	"chat-sync/domain"
	"chat-sync/snapshot"
	"log/slog"
	"strings"
)

// DefaultTokens are matched case-insensitively against top-level key names.
var DefaultTokens = []string{"chat", "message", "conversation", "mensaje"}

// Container is a top-level node that looks like it holds conversations.
type Container struct {
	Path      domain.Path
	ChildKeys []string
}

// Explorer scans a root snapshot. It never fails: a missing node means "not found".
type Explorer struct {
	tokens        []string
	maxContainers int
	log           *slog.Logger
}

// NewExplorer bounds the scan to maxContainers top-level containers, 0 means no bound.
func NewExplorer(tokens []string, maxContainers int, log *slog.Logger) *Explorer {
	if len(tokens) == 0 {
		tokens = DefaultTokens
	}
	lowered := make([]string, len(tokens))
	for i, t := range tokens {
		lowered[i] = strings.ToLower(t)
	}
	return &Explorer{tokens: lowered, maxContainers: maxContainers, log: log}
}

// Containers lists, in key order, the top-level nodes whose name contains one of the tokens.
func (e *Explorer) Containers(root any) []Container {
	var res []Container
	for _, key := range snapshot.ChildKeys(root) {
		if !e.matches(key) {
			continue
		}
		node, ok := snapshot.Descend(root, key)
		if !ok || !snapshot.IsContainer(node) {
			continue
		}
		if e.maxContainers > 0 && len(res) >= e.maxContainers {
			e.log.Debug("Exploration bound reached", "max", e.maxContainers)
			break
		}
		res = append(res, Container{Path: domain.NewPath(key), ChildKeys: snapshot.ChildKeys(node)})
	}
	return res
}

// Discover returns every two-level path "container/a/b" where {a, b} is the participant pair.
func (e *Explorer) Discover(root any, selfID, otherID string) []domain.Path {
	if strings.TrimSpace(selfID) == "" || strings.TrimSpace(otherID) == "" {
		return nil
	}
	var res []domain.Path
	for _, container := range e.Containers(root) {
		for _, key := range container.ChildKeys {
			var nested string
			switch key {
			case selfID:
				nested = otherID
			case otherID:
				nested = selfID
			default:
				continue
			}
			node, ok := snapshot.Descend(root, append(container.Path.Segments(), key, nested)...)
			if !ok || !snapshot.IsContainer(node) {
				continue
			}
			res = append(res, container.Path.Child(key, nested))
		}
	}
	e.log.Debug("Exploration done", "self", selfID, "other", otherID, "found", len(res))
	return res
}

func (e *Explorer) matches(key string) bool {
	lowered := strings.ToLower(key)
	for _, token := range e.tokens {
		if strings.Contains(lowered, token) {
			return true
		}
	}
	return false
}
