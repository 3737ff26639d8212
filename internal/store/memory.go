package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-process Store used by tests and local runs. It keeps
// every collection as a key -> raw document map and rebuilds subscriber
// snapshots on each change.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage
	watchers    map[string][]chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]json.RawMessage),
		watchers:    make(map[string][]chan struct{}),
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, collection, key string, doc any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return &WriteError{Collection: collection, Key: key, Err: err}
	}

	s.mu.Lock()
	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string]json.RawMessage)
		s.collections[collection] = col
	}
	col[key] = b
	watchers := s.watchers[collection]
	s.mu.Unlock()

	for _, w := range watchers {
		select {
		case w <- struct{}{}:
		default:
		}
	}
	return nil
}

func (s *MemoryStore) SubscribeOrdered(ctx context.Context, collection, sortField string, descending bool, limit int) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel)

	changed := make(chan struct{}, 1)
	s.mu.Lock()
	s.watchers[collection] = append(s.watchers[collection], changed)
	s.mu.Unlock()

	go func() {
		defer close(sub.out)
		defer s.removeWatcher(collection, changed)

		if !sub.push(ctx, s.snapshot(collection, sortField, descending, limit)) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
				if !sub.push(ctx, s.snapshot(collection, sortField, descending, limit)) {
					return
				}
			}
		}
	}()
	return sub, nil
}

func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func (s *MemoryStore) snapshot(collection, sortField string, descending bool, limit int) Snapshot {
	s.mu.RLock()
	col := s.collections[collection]
	docs := make([]json.RawMessage, 0, len(col))
	for _, d := range col {
		docs = append(docs, d)
	}
	s.mu.RUnlock()
	return orderDocs(docs, sortField, descending, limit)
}

func (s *MemoryStore) removeWatcher(collection string, ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	watchers := s.watchers[collection]
	for i, w := range watchers {
		if w == ch {
			s.watchers[collection] = append(watchers[:i], watchers[i+1:]...)
			break
		}
	}
}
