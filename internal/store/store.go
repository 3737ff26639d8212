package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrSubscriptionLost reports a snapshot stream that ended without its
// context being cancelled. The view it fed is dead until restarted.
var ErrSubscriptionLost = errors.New("store: subscription lost")

// Collections used by the board. Messages are keyed by draft id, presence
// records by user id; both sides of the protocol only ever upsert.
const (
	CollectionMessages = "messages"
	CollectionOnline   = "online"
)

// Snapshot is the complete current contents of a watched ordered set,
// delivered wholesale on every change. Documents are raw JSON.
type Snapshot []json.RawMessage

// Store is the storage collaborator: an ordered key-value document store
// with change subscriptions. Upserts are idempotent per key and follow
// last-writer-wins semantics.
type Store interface {
	Upsert(ctx context.Context, collection, key string, doc any) error
	SubscribeOrdered(ctx context.Context, collection, sortField string, descending bool, limit int) (*Subscription, error)
	Close(ctx context.Context) error
}

// WriteError wraps a failed upsert. Callers treat it as terminal: logged at
// the call site, never retried, never rolled back.
type WriteError struct {
	Collection string
	Key        string
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("store: upsert %s/%s: %v", e.Collection, e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Subscription carries full snapshots until cancelled. Delivery coalesces:
// a consumer that falls behind only ever sees the newest snapshot.
type Subscription struct {
	out    chan Snapshot
	cancel context.CancelFunc
}

func newSubscription(cancel context.CancelFunc) *Subscription {
	return &Subscription{out: make(chan Snapshot, 1), cancel: cancel}
}

// Snapshots returns the delivery channel. It is closed once the
// subscription ends.
func (s *Subscription) Snapshots() <-chan Snapshot { return s.out }

// Cancel stops delivery. Safe to call more than once.
func (s *Subscription) Cancel() { s.cancel() }

// push delivers snap, replacing any undelivered previous snapshot. Returns
// false once ctx is done.
func (s *Subscription) push(ctx context.Context, snap Snapshot) bool {
	select {
	case s.out <- snap:
		return true
	case <-ctx.Done():
		return false
	default:
	}
	select {
	case <-s.out:
	default:
	}
	select {
	case s.out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}

// orderDocs sorts raw documents by sortField and applies limit. Fields may
// be strings or JSON numbers; missing fields sort as the zero value. The
// sort is stable, so ties keep their input order within one snapshot.
func orderDocs(docs []json.RawMessage, sortField string, descending bool, limit int) []json.RawMessage {
	type entry struct {
		raw   json.RawMessage
		str   string
		num   float64
		isStr bool
	}
	entries := make([]entry, 0, len(docs))
	for _, raw := range docs {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		e := entry{raw: raw}
		switch v := m[sortField].(type) {
		case string:
			e.str, e.isStr = v, true
		case float64:
			e.num = v
		}
		entries = append(entries, e)
	}
	cmp := func(a, b entry) int {
		if a.isStr || b.isStr {
			switch {
			case a.str < b.str:
				return -1
			case a.str > b.str:
				return 1
			}
			return 0
		}
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	}
	sort.SliceStable(entries, func(i, j int) bool {
		c := cmp(entries[i], entries[j])
		if descending {
			return c > 0
		}
		return c < 0
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make(Snapshot, len(entries))
	for i, e := range entries {
		out[i] = e.raw
	}
	return out
}
