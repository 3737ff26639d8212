package board

import (
	"context"
	"sync"
	"time"

	"github.com/Seklfreak/cool-chat/internal/metrics"
	"github.com/Seklfreak/cool-chat/internal/store"
	"go.uber.org/zap"
)

// Presence republishes the local identity's heartbeat on a fixed interval
// and derives the live membership list from everyone's heartbeats. Nobody
// ever announces leaving: a member drops out once the TTL passes without a
// fresh heartbeat, re-evaluated whenever a snapshot arrives.
type Presence struct {
	store    store.Store
	session  Session
	log      *zap.Logger
	interval time.Duration
	ttl      time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	members  []PresenceRecord
	onUpdate func([]PresenceRecord)
}

func NewPresence(st store.Store, session Session, interval, ttl time.Duration, log *zap.Logger) *Presence {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &Presence{
		store:    st,
		session:  session,
		log:      log,
		interval: interval,
		ttl:      ttl,
		now:      time.Now,
	}
}

// OnUpdate registers a callback fired after every membership recompute.
// Must be set before Run.
func (p *Presence) OnUpdate(fn func([]PresenceRecord)) { p.onUpdate = fn }

// Run sends the first heartbeat immediately, then beats on the interval
// and recomputes membership on every snapshot, until ctx is cancelled.
func (p *Presence) Run(ctx context.Context) error {
	// Membership follows the subscription's name-descending order.
	sub, err := p.store.SubscribeOrdered(ctx, store.CollectionOnline, "name", true, 0)
	if err != nil {
		return err
	}
	defer sub.Cancel()

	p.heartbeat(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.heartbeat(ctx)
		case snap, ok := <-sub.Snapshots():
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return store.ErrSubscriptionLost
			}
			p.apply(snap)
		}
	}
}

// Members returns the most recently computed membership list.
func (p *Presence) Members() []PresenceRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]PresenceRecord(nil), p.members...)
}

func (p *Presence) heartbeat(ctx context.Context) {
	userID, ok := p.session.UserID()
	if !ok {
		return
	}
	record := PresenceRecord{
		Timestamp: p.now().UnixMilli(),
		Name:      p.session.Name(),
	}
	if err := p.store.Upsert(ctx, store.CollectionOnline, userID, record); err != nil {
		metrics.WritesTotal.WithLabelValues(store.CollectionOnline, "error").Inc()
		p.log.Error("heartbeat upsert failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	metrics.WritesTotal.WithLabelValues(store.CollectionOnline, "ok").Inc()
}

func (p *Presence) apply(snap store.Snapshot) {
	records := decodePresence(snap, p.log)
	members := FilterOnline(records, p.now(), p.ttl)

	p.mu.Lock()
	p.members = members
	p.mu.Unlock()

	metrics.SnapshotsTotal.WithLabelValues(store.CollectionOnline).Inc()
	metrics.OnlineMembers.Set(float64(len(members)))

	if p.onUpdate != nil {
		p.onUpdate(append([]PresenceRecord(nil), members...))
	}
}
