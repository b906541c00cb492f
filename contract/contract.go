//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/domain/search"
	"context"
	"fmt"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself, the supervisor does
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// It is only used for logging.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IBus interface {
	Register(name string, sink EventSink) (unregister func())
	Publish(ctx context.Context, e event.DomainEvent)
}

// Subscription is a live listener on one store path.
// Teardown is idempotent.
type Subscription interface {
	Path() domain.Path
	Teardown()
}

// OnValue receives the full snapshot of the subscribed path, nil when the node is absent.
type OnValue func(snapshot any)

// IStore is the hierarchical real-time store. Snapshots are trees of
// map[string]any, []any, string, float64/int64, bool and nil.
type IStore interface {
	Read(ctx context.Context, path domain.Path) (any, error)
	Subscribe(ctx context.Context, path domain.Path, onValue OnValue) (Subscription, error)
	// Append stores the record under a new store-generated child key and returns that key.
	Append(ctx context.Context, path domain.Path, record map[string]any) (string, error)
	// Update merges fields into the node at path.
	Update(ctx context.Context, path domain.Path, fields map[string]any) error
}

// Document is one entry of the registry.
type Document struct {
	ID     string
	Fields map[string]any
}

// IRegistry is the secondary document database holding request/order metadata.
type IRegistry interface {
	QueryByField(ctx context.Context, collection, field, value string) ([]Document, error)
	GetByID(ctx context.Context, collection, id string) (Document, error)
}

// IPathIndex remembers where the messages of a participant pair were found.
// The pair is unordered.
type IPathIndex interface {
	Lookup(ctx context.Context, a, b string) ([]domain.Path, error)
	Remember(ctx context.Context, a, b string, paths ...domain.Path) error
}

// IConversationLister builds the conversation list of the current participant.
type IConversationLister interface {
	Build(ctx context.Context) ([]domain.Conversation, error)
}

// IMessageIndex is the full-text index of merged messages.
type IMessageIndex interface {
	Index(ctx context.Context, messages ...domain.Message) error
	Search(ctx context.Context, query search.Query) ([]search.Hit, error)
}

// String renders a field as text, empty when missing.
func (d Document) String(field string) string {
	value, ok := d.Fields[field]
	if !ok || value == nil {
		return ""
	}
	if s, isString := value.(string); isString {
		return s
	}
	return fmt.Sprint(value)
}
