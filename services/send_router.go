package services

import (
	"chat-sync/contract"
	"chat-sync/discovery"
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/normalize"
	"chat-sync/snapshot"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Outgoing is a message cleared by the gate and ready to be written.
type Outgoing struct {
	ConversationID string
	Sender         domain.Participant
	RecipientID    string
	Content        string
	CreatedAt      time.Time
	// Known are the paths the open conversation already listens to, such as
	// the container of a request. They come before the derived candidates.
	Known []domain.Path
}

// SendRouter picks where an outgoing message is written.
// Candidates already holding data for the pair are tried first, in priority
// order, then the templates. Each destination is attempted once.
type SendRouter struct {
	store     contract.IStore
	generator *discovery.Generator
	index     contract.IPathIndex
	log       *slog.Logger
}

func NewSendRouter(store contract.IStore, generator *discovery.Generator, index contract.IPathIndex, log *slog.Logger) *SendRouter {
	return &SendRouter{store: store, generator: generator, index: index, log: log}
}

// Send appends the message and returns its local echo, carrying the store-generated id.
// It returns errors.ErrWriteFailed once every destination failed.
func (r *SendRouter) Send(ctx context.Context, out Outgoing) (domain.Message, error) {
	// 1. Same candidates as the listeners
	candidates := r.candidates(ctx, out)

	// 2. Destinations: confirmed candidates first, then templates
	destinations := r.destinations(ctx, candidates, out)

	// 3. First successful append wins
	timestamp := out.CreatedAt.UnixMilli()
	record := wireRecord(out, timestamp)
	var lastErr error
	for _, path := range destinations {
		id, err := r.store.Append(ctx, path, record)
		if err != nil {
			r.log.Warn("Write attempt failed", "path", path, "error", err)
			lastErr = err
			continue
		}

		// A known path belongs to the conversation, not to the pair
		if r.index != nil && !lo.Contains(out.Known, path) {
			if err := r.index.Remember(ctx, out.Sender.ID, out.RecipientID, path); err != nil {
				r.log.Warn("Path index update failed", "error", err)
			}
		}
		r.log.Debug("Message written", "path", path, "id", id)
		return domain.Message{
			ID:             id,
			ConversationID: out.ConversationID,
			Content:        out.Content,
			SenderID:       out.Sender.ID,
			RecipientID:    out.RecipientID,
			SenderRole:     domain.RoleSelf,
			Timestamp:      timestamp,
			Status:         domain.StatusSent,
			Path:           path.Child(id),
		}, nil
	}
	return domain.Message{}, fmt.Errorf("%w: %d attempts, last error: %v", errors.ErrWriteFailed, len(destinations), lastErr)
}

func (r *SendRouter) candidates(ctx context.Context, out Outgoing) []domain.PathCandidate {
	res := make([]domain.PathCandidate, 0, len(out.Known))
	for _, p := range out.Known {
		res = append(res, domain.PathCandidate{Path: p, Origin: domain.OriginDiscovered})
	}
	res = append(res, r.generator.Candidates(ctx, out.Sender.ID, out.RecipientID, out.ConversationID)...)
	return lo.UniqBy(res, func(c domain.PathCandidate) domain.Path { return c.Path })
}

func (r *SendRouter) destinations(ctx context.Context, candidates []domain.PathCandidate, out Outgoing) []domain.Path {
	confirmed := r.probe(ctx, candidates)
	seen := domain.NewPathSet()
	var res []domain.Path
	add := func(p domain.Path) {
		if !seen.Contains(p) {
			seen.Add(p)
			res = append(res, p)
		}
	}
	for i, c := range candidates {
		if confirmed[i] {
			add(c.Path)
		}
	}
	for _, p := range discovery.Templates(out.Sender.ID, out.RecipientID) {
		add(p)
	}
	return res
}

// probe reads every candidate concurrently, parent first, then the full path.
// A candidate is confirmed when its node already holds children.
func (r *SendRouter) probe(ctx context.Context, candidates []domain.PathCandidate) []bool {
	confirmed := make([]bool, len(candidates))
	var g errgroup.Group
	for i, candidate := range candidates {
		g.Go(func() error {
			path := candidate.Path
			if parent := path.Parent(); !parent.IsRoot() {
				node, err := r.store.Read(ctx, parent)
				if err != nil {
					r.log.Debug("Probe failed", "path", parent, "error", err)
					return nil
				}
				if !snapshot.IsContainer(node) {
					return nil
				}
			}
			node, err := r.store.Read(ctx, path)
			if err != nil {
				r.log.Debug("Probe failed", "path", path, "error", err)
				return nil
			}
			confirmed[i] = len(snapshot.ChildKeys(node)) > 0
			return nil
		})
	}
	_ = g.Wait()
	return confirmed
}

// wireRecord is the canonical shape written by this client.
func wireRecord(out Outgoing, timestamp int64) map[string]any {
	return map[string]any{
		"content":     out.Content,
		"senderId":    out.Sender.ID,
		"recipientId": out.RecipientID,
		"senderName":  out.Sender.DisplayName,
		"timestamp":   timestamp,
		"read":        false,
		"status":      string(domain.StatusSent),
		"sender":      normalize.LegacySelfTag,
	}
}
