package main

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/repositories"
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// seedFile is a demo dataset: the store tree and the registry documents by id.
type seedFile struct {
	Store    map[string]any            `json:"store"`
	Requests map[string]map[string]any `json:"requests"`
}

// seed merges the file into the store and the registry, it never removes anything.
func seed(ctx context.Context, path, collection string, store writableStore, registry repositories.BadgerRegistry) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var data seedFile
	if err = json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	for key, value := range data.Store {
		if err = store.Set(ctx, domain.NewPath(key), value); err != nil {
			return err
		}
	}
	for id, fields := range data.Requests {
		if err = registry.Put(ctx, collection, contract.Document{ID: id, Fields: fields}); err != nil {
			return err
		}
	}
	return nil
}
