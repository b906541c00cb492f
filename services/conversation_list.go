package services

import (
	"chat-sync/contract"
	"chat-sync/discovery"
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/normalize"
	"chat-sync/projection"
	"chat-sync/snapshot"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const registryLookupLimit = 8

// RegistrySchema names the registry collection holding requests and the fields used to read it.
type RegistrySchema struct {
	Collection            string
	OwnerField            string
	CounterpartyField     string
	CounterpartyNameField string
	SubjectField          string
}

func DefaultRegistrySchema() RegistrySchema {
	return RegistrySchema{
		Collection:            "requests",
		OwnerField:            "clientId",
		CounterpartyField:     "companyId",
		CounterpartyNameField: "companyName",
		SubjectField:          "title",
	}
}

// ConversationListBuilder lists the conversations of the current participant
// by crossing the chat-like containers of the store with the request registry.
type ConversationListBuilder struct {
	store    contract.IStore
	registry contract.IRegistry
	explorer *discovery.Explorer
	self     domain.Participant
	schema   RegistrySchema
	log      *slog.Logger
}

func NewConversationListBuilder(store contract.IStore, registry contract.IRegistry, explorer *discovery.Explorer,
	self domain.Participant, schema RegistrySchema, log *slog.Logger) *ConversationListBuilder {
	return &ConversationListBuilder{
		store: store, registry: registry, explorer: explorer,
		self: self, schema: schema, log: log,
	}
}

// pending is a conversation being assembled from one or more containers.
type pending struct {
	conversation domain.Conversation
	messages     []domain.Message
	paths        []domain.Path
	snapshots    []any
}

// Build returns the conversations sorted by last activity, newest first.
// A root without chat-like containers gives an empty list, not an error.
func (b *ConversationListBuilder) Build(ctx context.Context) ([]domain.Conversation, error) {
	// 1. One read of the root
	root, err := b.store.Read(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err)
	}
	containers := b.explorer.Containers(root)
	if len(containers) == 0 {
		return []domain.Conversation{}, nil
	}

	// 2. Requests owned by the current participant, in one batch
	owned := b.ownedRequests(ctx)

	// 3. Pair containers are attached to their counterparty, other keys are request ids
	byID := make(map[string]*pending)
	var requestKeys []string
	requestPaths := make(map[string][]domain.Path)
	for _, container := range containers {
		for _, key := range container.ChildKeys {
			path := container.Path.Child(key)
			node, _ := snapshot.Descend(root, path.Segments()...)
			if !snapshot.IsContainer(node) || looksLikeRecord(node) {
				continue
			}
			if others, nested, ok := b.pairOf(key, node); ok {
				for i, other := range others {
					full := container.Path.Child(nested[i].String())
					pairNode, _ := snapshot.Descend(root, full.Segments()...)
					b.attachPair(byID, owned, other, full, pairNode)
				}
				continue
			}
			if _, known := requestPaths[key]; !known {
				requestKeys = append(requestKeys, key)
			}
			requestPaths[key] = append(requestPaths[key], path)
		}
	}

	// 4. Request containers: owned ones are known, the others are fetched concurrently
	docs := b.resolveRequests(ctx, requestKeys, owned)
	for _, key := range requestKeys {
		doc, found := docs[key]
		entry := b.entry(byID, key)
		if found {
			b.enrich(&entry.conversation, doc)
		}
		for _, path := range requestPaths[key] {
			node, _ := snapshot.Descend(root, path.Segments()...)
			entry.paths = append(entry.paths, path)
			entry.snapshots = append(entry.snapshots, node)
		}
	}

	// 5. Summaries
	normalizer := normalize.NewNormalizer(b.self.ID, nil)
	res := make([]domain.Conversation, 0, len(byID))
	for id, entry := range byID {
		for i, path := range entry.paths {
			entry.messages = projection.Merge(entry.messages, normalizer.Batch(id, path, entry.snapshots[i]))
		}
		conversation, keep := b.summarize(entry)
		if keep {
			res = append(res, conversation)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].LastMessageTime != res[j].LastMessageTime {
			return res[i].LastMessageTime > res[j].LastMessageTime
		}
		return res[i].ID < res[j].ID
	})
	b.log.Debug("Conversation list built", "containers", len(containers), "conversations", len(res))
	return res, nil
}

// pairOf recognizes "self/{other}", "{other}/self" and "self_other" layouts.
// The returned paths are relative to the top-level container.
func (b *ConversationListBuilder) pairOf(key string, node any) ([]string, []domain.Path, bool) {
	self := b.self.ID
	var others []string
	var nested []domain.Path
	switch {
	case key == self:
		for _, other := range snapshot.ChildKeys(node) {
			child, _ := snapshot.Descend(node, other)
			if other != self && snapshot.IsContainer(child) && !looksLikeRecord(child) {
				others = append(others, other)
				nested = append(nested, domain.NewPath(self, other))
			}
		}
		return others, nested, len(others) > 0
	case strings.Contains(key, "_"):
		a, c, _ := strings.Cut(key, "_")
		if a == self && c != "" {
			return []string{c}, []domain.Path{domain.NewPath(key)}, true
		}
		if c == self && a != "" {
			return []string{a}, []domain.Path{domain.NewPath(key)}, true
		}
	default:
		if child, ok := snapshot.Descend(node, self); ok && snapshot.IsContainer(child) && !looksLikeRecord(child) {
			return []string{key}, []domain.Path{domain.NewPath(key, self)}, true
		}
	}
	return nil, nil, false
}

// attachPair adds the container of a self/other pair. The same pair can live
// under several containers, they all feed one conversation.
func (b *ConversationListBuilder) attachPair(byID map[string]*pending, owned map[string]contract.Document, other string, path domain.Path, node any) {
	id := domain.DirectConversationID(b.self.ID, other)
	var matched *contract.Document
	for _, doc := range owned {
		if doc.String(b.schema.CounterpartyField) == other {
			d := doc
			if matched == nil || d.ID < matched.ID {
				matched = &d
			}
		}
	}
	if matched != nil {
		id = matched.ID
	}
	entry := b.entry(byID, id)
	if matched != nil {
		b.enrich(&entry.conversation, *matched)
	}
	if entry.conversation.CounterpartyID == "" {
		entry.conversation.CounterpartyID = other
	}
	entry.paths = append(entry.paths, path)
	entry.snapshots = append(entry.snapshots, node)
}

func (b *ConversationListBuilder) entry(byID map[string]*pending, id string) *pending {
	entry, ok := byID[id]
	if !ok {
		entry = &pending{conversation: domain.Conversation{
			ID:              id,
			OwnerID:         b.self.ID,
			Kind:            domain.KindDirect,
			Subject:         domain.DirectChatTitle,
			DiscoveredPaths: domain.NewPathSet(),
		}}
		byID[id] = entry
	}
	return entry
}

func (b *ConversationListBuilder) enrich(conversation *domain.Conversation, doc contract.Document) {
	conversation.Kind = domain.KindRequest
	if subject := doc.String(b.schema.SubjectField); subject != "" {
		conversation.Subject = subject
	}
	if owner := doc.String(b.schema.OwnerField); owner != "" {
		conversation.OwnerID = owner
	}
	// seen from the company side, the counterparty is the request owner
	counterparty := doc.String(b.schema.CounterpartyField)
	name := doc.String(b.schema.CounterpartyNameField)
	if counterparty == b.self.ID {
		counterparty = conversation.OwnerID
		name = ""
	}
	if counterparty != "" {
		conversation.CounterpartyID = counterparty
	}
	if name != "" {
		conversation.CounterpartyName = name
	}
}

// summarize drops request-less containers where the current participant never appears.
func (b *ConversationListBuilder) summarize(entry *pending) (domain.Conversation, bool) {
	conversation := entry.conversation
	conversation.DiscoveredPaths = domain.NewPathSet(entry.paths...)
	involved := conversation.Kind == domain.KindRequest || conversation.CounterpartyID != ""
	self := domain.Participant{ID: b.self.ID}
	for _, m := range entry.messages {
		conversation.Touch(m)
		if m.SenderID == b.self.ID || m.RecipientID == b.self.ID {
			involved = true
		}
		if conversation.CounterpartyID == "" {
			conversation.CounterpartyID = self.Other(m.SenderID, m.RecipientID)
		}
	}
	return conversation, involved
}

func (b *ConversationListBuilder) ownedRequests(ctx context.Context) map[string]contract.Document {
	docs, err := b.registry.QueryByField(ctx, b.schema.Collection, b.schema.OwnerField, b.self.ID)
	if err != nil {
		b.log.Warn("Registry query failed", "collection", b.schema.Collection, "error", err)
		return nil
	}
	res := make(map[string]contract.Document, len(docs))
	for _, doc := range docs {
		res[doc.ID] = doc
	}
	return res
}

// resolveRequests keeps the registry documents of keys the current participant
// takes part in, as owner or counterparty.
func (b *ConversationListBuilder) resolveRequests(ctx context.Context, keys []string, owned map[string]contract.Document) map[string]contract.Document {
	var mu sync.Mutex
	res := make(map[string]contract.Document)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(registryLookupLimit)
	for _, key := range keys {
		if doc, ok := owned[key]; ok {
			mu.Lock()
			res[key] = doc
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			doc, err := b.registry.GetByID(gctx, b.schema.Collection, key)
			if err != nil {
				if !errors.Is(err, errors.ErrNotFound) {
					b.log.Warn("Registry lookup failed", "id", key, "error", err)
				}
				return nil
			}
			if doc.String(b.schema.OwnerField) != b.self.ID && doc.String(b.schema.CounterpartyField) != b.self.ID {
				return nil
			}
			mu.Lock()
			res[key] = doc
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return res
}

// looksLikeRecord tells a message record apart from a container of records.
func looksLikeRecord(node any) bool {
	record, ok := node.(map[string]any)
	if !ok {
		return false
	}
	for _, v := range record {
		if !snapshot.IsContainer(v) {
			return true
		}
	}
	return false
}
