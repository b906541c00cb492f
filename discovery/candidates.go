package discovery

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"
)

// LastResortPrefix holds messages keyed only by the conversation id.
const LastResortPrefix = "messages"

// Generator produces the ordered candidate paths of a conversation:
// discovered paths, then templates, then the last resort.
type Generator struct {
	store    contract.IStore
	index    contract.IPathIndex
	explorer *Explorer
	log      *slog.Logger
}

// NewGenerator accepts a nil index, exploration then runs on every call.
func NewGenerator(store contract.IStore, index contract.IPathIndex, explorer *Explorer, log *slog.Logger) *Generator {
	return &Generator{store: store, index: index, explorer: explorer, log: log}
}

// Candidates never fails, index and store errors degrade to templates only.
func (g *Generator) Candidates(ctx context.Context, selfID, counterpartyID, conversationID string) []domain.PathCandidate {
	var res []domain.PathCandidate
	for _, p := range g.Discovered(ctx, selfID, counterpartyID) {
		res = append(res, domain.PathCandidate{Path: p, Origin: domain.OriginDiscovered})
	}
	for _, p := range Templates(selfID, counterpartyID) {
		res = append(res, domain.PathCandidate{Path: p, Origin: domain.OriginTemplate})
	}
	if last := LastResort(conversationID); !last.IsRoot() {
		res = append(res, domain.PathCandidate{Path: last, Origin: domain.OriginTemplate})
	}
	return lo.UniqBy(res, func(c domain.PathCandidate) domain.Path { return c.Path })
}

// Discovered asks the path index first and explores the root only when the index misses.
func (g *Generator) Discovered(ctx context.Context, selfID, counterpartyID string) []domain.Path {
	if g.index != nil {
		paths, err := g.index.Lookup(ctx, selfID, counterpartyID)
		switch {
		case err != nil:
			g.log.Warn("Path index lookup failed", "error", err)
		case len(paths) > 0:
			g.log.Debug("Path index hit", "self", selfID, "other", counterpartyID, "paths", len(paths))
			return paths
		}
	}
	if g.explorer == nil {
		return nil
	}

	root, err := g.store.Read(ctx, "")
	if err != nil {
		g.log.Warn("Exploration skipped", "error", fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err))
		return nil
	}
	paths := g.explorer.Discover(root, selfID, counterpartyID)
	if len(paths) > 0 && g.index != nil {
		if err := g.index.Remember(ctx, selfID, counterpartyID, paths...); err != nil {
			g.log.Warn("Path index update failed", "error", err)
		}
	}
	return paths
}

// Templates are the deterministic layouts seen across deployments, in priority order.
func Templates(selfID, counterpartyID string) []domain.Path {
	if strings.TrimSpace(selfID) == "" || strings.TrimSpace(counterpartyID) == "" {
		return nil
	}
	s, o := selfID, counterpartyID
	return []domain.Path{
		domain.NewPath("chats", s, o),
		domain.NewPath("chats", o, s),
		domain.NewPath("messages", s, o),
		domain.NewPath("messages", o, s),
		domain.NewPath("conversations", s, o),
		domain.NewPath("conversations", o, s),
		domain.NewPath("chats", s+"_"+o),
		domain.NewPath("chats", o+"_"+s),
		domain.NewPath("directMessages", s+"_"+o),
		domain.NewPath("directMessages", o+"_"+s),
	}
}

// LastResort is the root when the conversation id is blank.
func LastResort(conversationID string) domain.Path {
	if strings.TrimSpace(conversationID) == "" {
		return ""
	}
	return domain.NewPath(LastResortPrefix, conversationID)
}
