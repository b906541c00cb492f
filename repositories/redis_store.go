package repositories

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/snapshot"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	redisNodePrefix     = "node:"
	redisChildrenPrefix = "children:"
	redisChangesPrefix  = "changes:"
)

// RedisStore keeps the hierarchical store in Redis so that several clients
// share it. Objects are flattened: each leaf is a JSON string under
// "node:{path}", every parent tracks its child keys in the set
// "children:{path}", and every write is published on "changes:{p}" for the
// written path and all its ancestors.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisStore(ctx context.Context, redisURL string, log *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return NewRedisStoreWithClient(client, log), nil
}

func NewRedisStoreWithClient(client *redis.Client, log *slog.Logger) *RedisStore {
	return &RedisStore{client: client, log: log}
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Read(ctx context.Context, path domain.Path) (any, error) {
	for _, ancestor := range path.Ancestors() {
		exists, err := r.client.Exists(ctx, redisNodePrefix+string(ancestor)).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
		}
		if exists == 1 {
			tree, err := r.build(ctx, ancestor)
			if err != nil {
				return nil, err
			}
			node, _ := snapshot.Descend(tree, path.Segments()[len(ancestor.Segments()):]...)
			return node, nil
		}
	}
	return r.build(ctx, path)
}

// build merges the node stored at path with its children, recursively.
func (r *RedisStore) build(ctx context.Context, path domain.Path) (any, error) {
	var result any
	raw, err := r.client.Get(ctx, redisNodePrefix+string(path)).Bytes()
	switch {
	case err == redis.Nil:
	case err != nil:
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	default:
		if err = json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrInvalidRecord, err)
		}
	}

	children, err := r.client.SMembers(ctx, redisChildrenPrefix+string(path)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	for _, child := range children {
		value, err := r.build(ctx, path.Child(child))
		if err != nil {
			return nil, err
		}
		if value == nil {
			continue
		}
		tree, ok := result.(map[string]any)
		if !ok {
			tree = make(map[string]any)
			result = tree
		}
		tree[child] = value
	}
	return result, nil
}

// Subscribe listens on the channel of path, which carries every write at or
// below it, and on the channels of its ancestors to see whole-record writes above it.
func (r *RedisStore) Subscribe(ctx context.Context, path domain.Path, onValue contract.OnValue) (contract.Subscription, error) {
	ownChannel := redisChangesPrefix + string(path)
	channels := []string{ownChannel}
	for _, ancestor := range path.Ancestors() {
		channels = append(channels, redisChangesPrefix+string(ancestor))
	}

	pubsub := r.client.Subscribe(ctx, channels...)
	// Receive blocks until Redis confirms, no write can be missed after that point
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: subscribe %q: %v", errors.ErrStoreUnavailable, path, err)
	}

	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &subscription{path: path, onValue: onValue}
	sub.active.Store(true)
	sub.teardown = func() {
		cancel()
		_ = pubsub.Close()
	}

	value, err := r.Read(ctx, path)
	if err != nil {
		sub.Teardown()
		return nil, err
	}
	onValue(value)

	go func() {
		for msg := range pubsub.Channel() {
			if !sub.active.Load() {
				return
			}
			// Ancestor channels also carry every sibling write, only a write
			// of the ancestor itself concerns this path.
			if msg.Channel != ownChannel && !isAncestor(domain.Path(msg.Payload), path) {
				continue
			}
			value, err := r.Read(listenCtx, path)
			if err != nil {
				r.log.Warn("Cannot refresh subscriber", "path", path, "error", err)
				continue
			}
			if sub.active.Load() {
				onValue(value)
			}
		}
	}()
	return sub, nil
}

func (r *RedisStore) Append(ctx context.Context, path domain.Path, record map[string]any) (string, error) {
	id := NewPushID()
	if err := r.Set(ctx, path.Child(id), record); err != nil {
		return "", err
	}
	return id, nil
}

func (r *RedisStore) Update(ctx context.Context, path domain.Path, fields map[string]any) error {
	var stale []string
	for field := range fields {
		keys, err := r.below(ctx, path.Child(field))
		if err != nil {
			return err
		}
		stale = append(stale, keys...)
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(stale) > 0 {
			pipe.Del(ctx, stale...)
		}
		for field, value := range fields {
			if err := r.write(ctx, pipe, path.Child(field), value); err != nil {
				return err
			}
		}
		r.publish(ctx, pipe, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("update %q: %w", path, err)
	}
	return nil
}

// Set replaces the node at path and drops whatever was stored below it.
func (r *RedisStore) Set(ctx context.Context, path domain.Path, value any) error {
	if path.IsRoot() {
		return errInvalidRoot
	}
	stale, err := r.below(ctx, path)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(stale) > 0 {
			pipe.Del(ctx, stale...)
		}
		if err := r.write(ctx, pipe, path, value); err != nil {
			return err
		}
		r.publish(ctx, pipe, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %q: %w", path, err)
	}
	return nil
}

// below lists the key of the node at path and of every node stored under it, with their children sets.
func (r *RedisStore) below(ctx context.Context, path domain.Path) ([]string, error) {
	keys := []string{redisNodePrefix + string(path)}
	children, err := r.client.SMembers(ctx, redisChildrenPrefix+string(path)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	if len(children) == 0 {
		return keys, nil
	}
	keys = append(keys, redisChildrenPrefix+string(path))
	for _, child := range children {
		nested, err := r.below(ctx, path.Child(child))
		if err != nil {
			return nil, err
		}
		keys = append(keys, nested...)
	}
	return keys, nil
}

// write stores value at path, one key per leaf, so that a later write below
// path never hides what was written with it.
func (r *RedisStore) write(ctx context.Context, pipe redis.Pipeliner, path domain.Path, value any) error {
	if tree, ok := value.(map[string]any); ok && len(tree) > 0 {
		for key, child := range tree {
			if err := r.write(ctx, pipe, path.Child(key), child); err != nil {
				return err
			}
		}
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidRecord, err)
	}
	pipe.Set(ctx, redisNodePrefix+string(path), raw, 0)
	segments := path.Segments()
	for i, segment := range segments {
		parent := domain.NewPath(segments[:i]...)
		pipe.SAdd(ctx, redisChildrenPrefix+string(parent), segment)
	}
	return nil
}

func (r *RedisStore) publish(ctx context.Context, pipe redis.Pipeliner, path domain.Path) {
	pipe.Publish(ctx, redisChangesPrefix+string(path), string(path))
	for _, ancestor := range path.Ancestors() {
		pipe.Publish(ctx, redisChangesPrefix+string(ancestor), string(path))
	}
	pipe.Publish(ctx, redisChangesPrefix, string(path))
}

func isAncestor(candidate, path domain.Path) bool {
	if candidate.IsRoot() {
		return !path.IsRoot()
	}
	return strings.HasPrefix(string(path), string(candidate)+"/")
}
