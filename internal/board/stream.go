package board

import (
	"context"
	"sync"
	"time"

	"github.com/Seklfreak/cool-chat/internal/metrics"
	"github.com/Seklfreak/cool-chat/internal/store"
	"go.uber.org/zap"
)

// StreamView is the composed message board state derived from one
// snapshot: finalized history plus the drafts currently inside the
// visibility window.
type StreamView struct {
	Committed  []Message `json:"committed"`
	LiveDrafts []Message `json:"live_drafts"`
}

// Stream subscribes to the most recent messages and recomputes the two
// partitions on every snapshot. There is no internal timer: a draft ages
// out of the live view only when the next snapshot arrives and the age
// check is re-evaluated.
type Stream struct {
	store  store.Store
	log    *zap.Logger
	limit  int
	window time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	view     StreamView
	onUpdate func(StreamView)
}

func NewStream(st store.Store, limit int, window time.Duration, log *zap.Logger) *Stream {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if window <= 0 {
		window = DefaultLiveDraftWindow
	}
	return &Stream{
		store:  st,
		log:    log,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// OnUpdate registers a callback fired after every recompute. Must be set
// before Run.
func (s *Stream) OnUpdate(fn func(StreamView)) { s.onUpdate = fn }

// Run subscribes and processes snapshots until ctx is cancelled. A stream
// that ends on its own is fatal to this view; the caller decides whether
// to restart it.
func (s *Stream) Run(ctx context.Context) error {
	sub, err := s.store.SubscribeOrdered(ctx, store.CollectionMessages, "timestamp", true, s.limit)
	if err != nil {
		return err
	}
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-sub.Snapshots():
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return store.ErrSubscriptionLost
			}
			s.apply(snap)
		}
	}
}

// View returns the most recently computed views.
func (s *Stream) View() StreamView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StreamView{
		Committed:  append([]Message(nil), s.view.Committed...),
		LiveDrafts: append([]Message(nil), s.view.LiveDrafts...),
	}
}

func (s *Stream) apply(snap store.Snapshot) {
	msgs := decodeMessages(snap, s.log)
	// subscription order is newest-first; display order is oldest-first
	reverseMessages(msgs)
	committed, drafts := PartitionMessages(msgs, s.now(), s.window)

	view := StreamView{Committed: committed, LiveDrafts: drafts}
	s.mu.Lock()
	s.view = view
	s.mu.Unlock()

	metrics.SnapshotsTotal.WithLabelValues(store.CollectionMessages).Inc()
	metrics.LiveDrafts.Set(float64(len(drafts)))

	if s.onUpdate != nil {
		s.onUpdate(view)
	}
}
