package board

import (
	"context"
	"sync"
	"time"

	"github.com/Seklfreak/cool-chat/internal/metrics"
	"github.com/Seklfreak/cool-chat/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session exposes the resolved identity to the board components. ok is
// false while the identity bootstrap is still pending.
type Session interface {
	UserID() (userID string, ok bool)
	Name() string
}

// CommitPublisher receives a copy of every committed message. Optional.
type CommitPublisher interface {
	PublishCommitted(ctx context.Context, msg Message) error
}

// Composer drives the draft/commit lifecycle for the local client. Every
// keystroke overwrites the draft document keyed by the current draft id;
// submit flips the same document to completed and starts a fresh draft.
//
// Writes never block the caller: they are queued onto a single worker so
// they reach the store in call order, and their results are logged and
// discarded. Local state is never rolled back on a failed write.
type Composer struct {
	store     store.Store
	session   Session
	publisher CommitPublisher
	log       *zap.Logger

	now   func() time.Time
	newID func() string

	mu      sync.Mutex
	draftID string
	draftTS int64
	content string

	writes chan func(context.Context)
}

func NewComposer(st store.Store, session Session, publisher CommitPublisher, log *zap.Logger) *Composer {
	return &Composer{
		store:     st,
		session:   session,
		publisher: publisher,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
		draftID:   uuid.NewString(),
		writes:    make(chan func(context.Context), 64),
	}
}

// Run drains the write queue until ctx is cancelled. In-flight writes are
// not cancelled; whatever completes after teardown is logged and dropped.
func (c *Composer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-c.writes:
			fn(ctx)
		}
	}
}

// OnContentChange publishes the current draft text. It is a no-op while
// the identity is still pending, and before the draft has ever had
// non-empty content. The draft's timestamp is frozen at the first write.
func (c *Composer) OnContentChange(ctx context.Context, text string) {
	userID, ok := c.session.UserID()
	if !ok {
		return
	}

	c.mu.Lock()
	if c.draftTS == 0 {
		if text == "" {
			c.mu.Unlock()
			return
		}
		c.draftTS = c.now().UnixMilli()
	}
	c.content = text
	msg := Message{
		ID:        c.draftID,
		Timestamp: c.draftTS,
		Content:   text,
		Name:      c.session.Name(),
		UserID:    userID,
		Completed: false,
	}
	c.mu.Unlock()

	c.enqueue(func(ctx context.Context) {
		c.upsert(ctx, msg)
	})
}

// OnSubmit commits the current draft: the same document is rewritten with
// completed=true, content and timestamp untouched. Ignored while the draft
// is empty. A new draft id is allocated immediately; the commit write's
// outcome is not awaited.
func (c *Composer) OnSubmit(ctx context.Context) {
	userID, ok := c.session.UserID()
	if !ok {
		return
	}

	c.mu.Lock()
	if c.content == "" {
		c.mu.Unlock()
		return
	}
	msg := Message{
		ID:        c.draftID,
		Timestamp: c.draftTS,
		Content:   c.content,
		Name:      c.session.Name(),
		UserID:    userID,
		Completed: true,
	}
	c.draftID = c.newID()
	c.draftTS = 0
	c.content = ""
	c.mu.Unlock()

	c.enqueue(func(ctx context.Context) {
		c.upsert(ctx, msg)
		if c.publisher != nil {
			if err := c.publisher.PublishCommitted(ctx, msg); err != nil {
				c.log.Error("commit event publish failed",
					zap.String("id", msg.ID), zap.Error(err))
			}
		}
	})
}

// Draft returns the current local draft text.
func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

func (c *Composer) enqueue(fn func(context.Context)) {
	c.writes <- fn
}

func (c *Composer) upsert(ctx context.Context, msg Message) {
	if err := c.store.Upsert(ctx, store.CollectionMessages, msg.ID, msg); err != nil {
		metrics.WritesTotal.WithLabelValues(store.CollectionMessages, "error").Inc()
		c.log.Error("message upsert failed", zap.String("id", msg.ID), zap.Error(err))
		return
	}
	metrics.WritesTotal.WithLabelValues(store.CollectionMessages, "ok").Inc()
}
