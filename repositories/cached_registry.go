package repositories

import (
	"chat-sync/contract"
	"context"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedRegistry keeps recently fetched documents in memory. Only GetByID is
// cached: field queries are batch reads whose result set changes over time.
type CachedRegistry struct {
	next  contract.IRegistry
	cache *lru.Cache[string, contract.Document]
	log   *slog.Logger
}

func NewCachedRegistry(next contract.IRegistry, size int, log *slog.Logger) (*CachedRegistry, error) {
	cache, err := lru.New[string, contract.Document](size)
	if err != nil {
		return nil, err
	}
	return &CachedRegistry{next: next, cache: cache, log: log}, nil
}

func (c *CachedRegistry) GetByID(ctx context.Context, collection, id string) (contract.Document, error) {
	key := collection + "/" + id
	if doc, ok := c.cache.Get(key); ok {
		return doc, nil
	}
	doc, err := c.next.GetByID(ctx, collection, id)
	if err != nil {
		return contract.Document{}, err
	}
	c.cache.Add(key, doc)
	return doc, nil
}

// QueryByField goes to the registry and refreshes the cache with what it returns.
func (c *CachedRegistry) QueryByField(ctx context.Context, collection, field, value string) ([]contract.Document, error) {
	docs, err := c.next.QueryByField(ctx, collection, field, value)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		c.cache.Add(collection+"/"+doc.ID, doc)
	}
	return docs, nil
}
