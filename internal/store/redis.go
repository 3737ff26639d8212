package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps each collection in a hash and fans out change
// notifications over pub/sub. Ordering happens client-side when the
// snapshot is rebuilt.
//
// Keys: <prefix>:col:<collection> (hash, field = document key)
// Channels: <prefix>:changes:<collection>
type RedisStore struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

func NewRedisStore(client *redis.Client, prefix string, log *zap.Logger) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, log: log}
}

func (s *RedisStore) colKey(collection string) string {
	return fmt.Sprintf("%s:col:%s", s.prefix, collection)
}

func (s *RedisStore) channel(collection string) string {
	return fmt.Sprintf("%s:changes:%s", s.prefix, collection)
}

func (s *RedisStore) Upsert(ctx context.Context, collection, key string, doc any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return &WriteError{Collection: collection, Key: key, Err: err}
	}
	if err := s.client.HSet(ctx, s.colKey(collection), key, b).Err(); err != nil {
		return &WriteError{Collection: collection, Key: key, Err: err}
	}
	// Notification is best-effort; peers converge on their next snapshot.
	if err := s.client.Publish(ctx, s.channel(collection), key).Err(); err != nil {
		s.log.Warn("change publish failed",
			zap.String("collection", collection), zap.Error(err))
	}
	return nil
}

func (s *RedisStore) SubscribeOrdered(ctx context.Context, collection, sortField string, descending bool, limit int) (*Subscription, error) {
	pubsub := s.client.Subscribe(ctx, s.channel(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel)

	go func() {
		defer close(sub.out)
		defer pubsub.Close()

		snap, err := s.snapshot(ctx, collection, sortField, descending, limit)
		if err != nil {
			s.log.Error("initial snapshot failed",
				zap.String("collection", collection), zap.Error(err))
			return
		}
		if !sub.push(ctx, snap) {
			return
		}
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				snap, err := s.snapshot(ctx, collection, sortField, descending, limit)
				if err != nil {
					s.log.Error("snapshot failed",
						zap.String("collection", collection), zap.Error(err))
					continue
				}
				if !sub.push(ctx, snap) {
					return
				}
			}
		}
	}()
	return sub, nil
}

func (s *RedisStore) snapshot(ctx context.Context, collection, sortField string, descending bool, limit int) (Snapshot, error) {
	vals, err := s.client.HGetAll(ctx, s.colKey(collection)).Result()
	if err != nil {
		return nil, err
	}
	docs := make([]json.RawMessage, 0, len(vals))
	for _, v := range vals {
		docs = append(docs, json.RawMessage(v))
	}
	return orderDocs(docs, sortField, descending, limit), nil
}

func (s *RedisStore) Close(ctx context.Context) error {
	return s.client.Close()
}
