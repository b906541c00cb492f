package repositories

import (
	"chat-sync/domain"
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// BadgerPathIndex remembers, per participant pair, the store paths where
// messages were already found or written. It turns whole-store exploration
// into a fallback taken only when the index misses.
type BadgerPathIndex struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBadgerPathIndex(db *badger.DB, log *slog.Logger) BadgerPathIndex {
	return BadgerPathIndex{db: db, log: log}
}

// pairKey is symmetric: "idx:{min}|{max}".
func pairKey(a, b string) []byte {
	ids := []string{a, b}
	sort.Strings(ids)
	return []byte(fmt.Sprintf("idx:%s|%s", ids[0], ids[1]))
}

func (i BadgerPathIndex) Lookup(_ context.Context, a, b string) ([]domain.Path, error) {
	var paths []domain.Path
	err := i.db.View(func(txn *badger.Txn) error {
		var err error
		paths, err = i.get(txn, a, b)
		return err
	})
	return paths, err
}

// Remember appends the paths not yet known, keeping the first-seen order.
func (i BadgerPathIndex) Remember(_ context.Context, a, b string, paths ...domain.Path) error {
	if len(paths) == 0 {
		return nil
	}
	return i.db.Update(func(txn *badger.Txn) error {
		known, err := i.get(txn, a, b)
		if err != nil {
			return err
		}
		merged := lo.Uniq(append(known, paths...))
		if len(merged) == len(known) {
			return nil
		}
		list, err := structpb.NewList(lo.Map(merged, func(p domain.Path, _ int) any { return string(p) }))
		if err != nil {
			return err
		}
		raw, err := proto.Marshal(list)
		if err != nil {
			return err
		}
		i.log.Debug("Path index updated", "a", a, "b", b, "paths", len(merged))
		return txn.Set(pairKey(a, b), raw)
	})
}

func (i BadgerPathIndex) get(txn *badger.Txn, a, b string) ([]domain.Path, error) {
	item, err := txn.Get(pairKey(a, b))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list structpb.ListValue
	err = item.Value(func(raw []byte) error {
		return proto.Unmarshal(raw, &list)
	})
	if err != nil {
		return nil, err
	}
	return lo.FilterMap(list.GetValues(), func(v *structpb.Value, _ int) (domain.Path, bool) {
		p := domain.NewPath(v.GetStringValue())
		return p, !p.IsRoot()
	}), nil
}
