package sink

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"log/slog"
	"sync"
	"time"
)

// IndexSink buffers merged messages and hands them to the indexer worker.
// The buffer is flushed when it holds maxBuffered messages or after bufferTimeout.
// A full channel drops the batch, the next merge carries the same messages again.
type IndexSink struct {
	mu            sync.Mutex
	timer         *time.Timer
	pending       map[string]domain.Message
	out           chan<- []domain.Message
	maxBuffered   int
	bufferTimeout time.Duration
	log           *slog.Logger
}

func NewIndexSink(out chan<- []domain.Message, maxBuffered int, bufferTimeout time.Duration, log *slog.Logger) *IndexSink {
	return &IndexSink{
		pending:       make(map[string]domain.Message),
		out:           out,
		maxBuffered:   maxBuffered,
		bufferTimeout: bufferTimeout,
		log:           log,
	}
}

func (s *IndexSink) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.MessagesMerged)
	if !ok {
		return nil
	}

	s.mu.Lock()
	// 1. The latest version of a message wins
	for _, m := range evt.Messages {
		if m.Volatile || m.ID == "" {
			continue
		}
		s.pending[evt.ConversationID+"\x00"+m.ID] = m
	}

	// 2. First message of a batch starts the deadline
	if len(s.pending) > 0 && s.timer == nil {
		s.timer = time.AfterFunc(s.bufferTimeout, s.Flush)
	}
	isFull := len(s.pending) >= s.maxBuffered
	s.mu.Unlock()

	if isFull {
		s.Flush()
	}
	return nil
}

// Flush swaps the buffer out and pushes it without blocking.
func (s *IndexSink) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	batch := make([]domain.Message, 0, len(s.pending))
	for _, m := range s.pending {
		batch = append(batch, m)
	}
	s.pending = make(map[string]domain.Message)
	s.mu.Unlock()

	select {
	case s.out <- batch:
		s.log.Debug("Batch handed to indexer", "count", len(batch))
	default:
		s.log.Warn("Indexer is busy, batch dropped", "count", len(batch))
	}
}
