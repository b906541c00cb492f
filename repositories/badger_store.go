package repositories

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/snapshot"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const nodePrefix = "node:"

// BadgerStore persists the hierarchical store in BadgerDB.
// Every written node is one key "node:{path}" holding a protobuf Value, so a
// subtree is rebuilt with a single prefix scan.
// Badger is an embedded, single-process database: subscribers are therefore
// notified in-process, right after the write transaction commits.
type BadgerStore struct {
	db       *badger.DB
	log      *slog.Logger
	notifier *notifier
}

func NewBadgerStore(db *badger.DB, log *slog.Logger) *BadgerStore {
	return &BadgerStore{db: db, log: log, notifier: newNotifier()}
}

func nodeKey(path domain.Path) []byte {
	return []byte(nodePrefix + string(path))
}

// Read rebuilds the subtree at path. When a whole record was written at an
// ancestor, that ancestor is rebuilt first and the path is looked up inside it.
func (b *BadgerStore) Read(_ context.Context, path domain.Path) (any, error) {
	var result any
	err := b.db.View(func(txn *badger.Txn) error {
		for _, ancestor := range path.Ancestors() {
			_, found, err := b.get(txn, ancestor)
			if err != nil {
				return err
			}
			if found {
				tree, err := b.scan(txn, ancestor)
				if err != nil {
					return err
				}
				result, _ = snapshot.Descend(tree, path.Segments()[len(ancestor.Segments()):]...)
				return nil
			}
		}

		var err error
		result, err = b.scan(txn, path)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return result, nil
}

func (b *BadgerStore) get(txn *badger.Txn, path domain.Path) (any, bool, error) {
	if path.IsRoot() {
		return nil, false, nil
	}
	item, err := txn.Get(nodeKey(path))
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var value any
	err = item.Value(func(raw []byte) error {
		value, err = decodeValue(raw)
		return err
	})
	return value, err == nil, err
}

// scan merges the node stored at path with every node stored below it.
func (b *BadgerStore) scan(txn *badger.Txn, path domain.Path) (any, error) {
	result, _, err := b.get(txn, path)
	if err != nil {
		return nil, err
	}

	prefix := nodePrefix
	if !path.IsRoot() {
		prefix = nodePrefix + string(path) + "/"
	}
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
		item := it.Item()
		rel := domain.NewPath(strings.TrimPrefix(string(item.Key()), prefix)).Segments()
		var value any
		err := item.Value(func(raw []byte) error {
			var decodeErr error
			value, decodeErr = decodeValue(raw)
			return decodeErr
		})
		if err != nil {
			return nil, err
		}
		tree, ok := result.(map[string]any)
		if !ok {
			tree = make(map[string]any)
			result = tree
		}
		snapshot.Insert(tree, rel, value)
	}
	return result, nil
}

func (b *BadgerStore) Subscribe(ctx context.Context, path domain.Path, onValue contract.OnValue) (contract.Subscription, error) {
	sub := b.notifier.add(path, onValue)
	value, err := b.Read(ctx, path)
	if err != nil {
		sub.Teardown()
		return nil, err
	}
	onValue(value)
	return sub, nil
}

func (b *BadgerStore) Append(ctx context.Context, path domain.Path, record map[string]any) (string, error) {
	id := NewPushID()
	if err := b.Set(ctx, path.Child(id), record); err != nil {
		return "", err
	}
	return id, nil
}

// Update writes every field as its own node below path, so a partial update
// never rewrites the record it belongs to.
func (b *BadgerStore) Update(_ context.Context, path domain.Path, fields map[string]any) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		for field, value := range fields {
			raw, err := encodeValue(value)
			if err != nil {
				return err
			}
			if err = txn.Set(nodeKey(path.Child(field)), raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update %q: %w", path, err)
	}
	b.notifier.deliver(path, b.readOrNil)
	return nil
}

// Set replaces the node at path and drops whatever was stored below it.
func (b *BadgerStore) Set(_ context.Context, path domain.Path, value any) error {
	if path.IsRoot() {
		return errInvalidRoot
	}
	raw, err := encodeValue(value)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		if err := b.dropBelow(txn, path); err != nil {
			return err
		}
		return txn.Set(nodeKey(path), raw)
	})
	if err != nil {
		return fmt.Errorf("set %q: %w", path, err)
	}
	b.notifier.deliver(path, b.readOrNil)
	return nil
}

func (b *BadgerStore) dropBelow(txn *badger.Txn, path domain.Path) error {
	prefix := []byte(nodePrefix + string(path) + "/")
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (b *BadgerStore) readOrNil(path domain.Path) any {
	value, err := b.Read(context.Background(), path)
	if err != nil {
		b.log.Warn("Cannot refresh subscriber", "path", path, "error", err)
		return nil
	}
	return value
}
