package workers

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"context"
	"log/slog"
)

// Indexer feeds the search index with merged batches.
// Indexing errors are logged, a lost batch is indexed again on the next merge.
type Indexer struct {
	index   contract.IMessageIndex
	batches chan []domain.Message
	log     *slog.Logger
}

func NewIndexer(index contract.IMessageIndex, batches chan []domain.Message, log *slog.Logger) *Indexer {
	return &Indexer{index: index, batches: batches, log: log}
}

func (w Indexer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping indexer")
			return nil
		case batch, ok := <-w.batches:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			if err := w.index.Index(ctx, batch...); err != nil {
				w.log.Warn("Indexing failed", "count", len(batch), "error", err)
			}
		}
	}
}
