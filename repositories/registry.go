package repositories

import (
	"chat-sync/contract"
	"chat-sync/errors"
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// BadgerRegistry is a small document database on top of BadgerDB.
// Documents live under "doc:{collection}:{id}".
type BadgerRegistry struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBadgerRegistry(db *badger.DB, log *slog.Logger) BadgerRegistry {
	return BadgerRegistry{db: db, log: log}
}

func docPrefix(collection string) string {
	return fmt.Sprintf("doc:%s:", collection)
}

func (r BadgerRegistry) Put(_ context.Context, collection string, doc contract.Document) error {
	fields, err := structpb.NewStruct(doc.Fields)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidRecord, err)
	}
	raw, err := proto.Marshal(fields)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(docPrefix(collection)+doc.ID), raw)
	})
}

func (r BadgerRegistry) GetByID(_ context.Context, collection, id string) (contract.Document, error) {
	var doc contract.Document
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(docPrefix(collection) + id))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: %s/%s", errors.ErrNotFound, collection, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(raw []byte) error {
			doc, err = toDocument(id, raw)
			return err
		})
	})
	return doc, err
}

// QueryByField scans the collection and keeps the documents whose field,
// rendered as text, equals value.
func (r BadgerRegistry) QueryByField(_ context.Context, collection, field, value string) ([]contract.Document, error) {
	var docs []contract.Document
	prefix := []byte(docPrefix(collection))
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(prefix):])
			err := item.Value(func(raw []byte) error {
				doc, err := toDocument(id, raw)
				if err != nil {
					return err
				}
				if doc.String(field) == value {
					docs = append(docs, doc)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.log.Debug("Registry query", "collection", collection, "field", field, "matches", len(docs))
	return docs, nil
}

func toDocument(id string, raw []byte) (contract.Document, error) {
	var fields structpb.Struct
	if err := proto.Unmarshal(raw, &fields); err != nil {
		return contract.Document{}, err
	}
	return contract.Document{ID: id, Fields: fields.AsMap()}, nil
}
