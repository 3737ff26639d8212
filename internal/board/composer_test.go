package board

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Seklfreak/cool-chat/internal/store"
	"go.uber.org/zap"
)

func newTestComposer(t *testing.T, session Session, publisher CommitPublisher) (*Composer, *store.MemoryStore, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	st := store.NewMemoryStore()
	c := NewComposer(st, session, publisher, zap.NewNop())
	go c.Run(ctx)
	return c, st, cancel
}

func storedMessages(t *testing.T, st *store.MemoryStore) []Message {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := st.SubscribeOrdered(ctx, store.CollectionMessages, "timestamp", false, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Cancel()
	select {
	case snap := <-sub.Snapshots():
		msgs := make([]Message, 0, len(snap))
		for _, raw := range snap {
			var m Message
			if err := json.Unmarshal(raw, &m); err != nil {
				t.Fatal(err)
			}
			msgs = append(msgs, m)
		}
		return msgs
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot from store")
		return nil
	}
}

func TestComposerTimestampFrozenAcrossKeystrokes(t *testing.T) {
	session := &fakeSession{id: "u1", name: "Ann", resolved: true}
	c, st, cancel := newTestComposer(t, session, nil)
	defer cancel()

	base := time.UnixMilli(500_000_000)
	now := base
	c.now = func() time.Time { return now }

	ctx := context.Background()
	c.OnContentChange(ctx, "h")
	now = base.Add(3 * time.Second)
	c.OnContentChange(ctx, "he")
	now = base.Add(7 * time.Second)
	c.OnContentChange(ctx, "hello")

	waitFor(t, "final keystroke to land", func() bool {
		msgs := storedMessages(t, st)
		return len(msgs) == 1 && msgs[0].Content == "hello"
	})
	msgs := storedMessages(t, st)
	if msgs[0].Timestamp != base.UnixMilli() {
		t.Fatalf("timestamp = %d, want frozen first-write value %d", msgs[0].Timestamp, base.UnixMilli())
	}
	if msgs[0].Completed {
		t.Fatal("draft must not be completed before submit")
	}
}

func TestComposerNoWriteWhileIdentityPending(t *testing.T) {
	session := &fakeSession{}
	c, st, cancel := newTestComposer(t, session, nil)
	defer cancel()

	c.OnContentChange(context.Background(), "hello")
	time.Sleep(50 * time.Millisecond)

	if msgs := storedMessages(t, st); len(msgs) != 0 {
		t.Fatalf("got %d stored messages, want none while pending", len(msgs))
	}
}

func TestComposerNoWriteBeforeFirstContent(t *testing.T) {
	session := &fakeSession{id: "u1", name: "Ann", resolved: true}
	c, st, cancel := newTestComposer(t, session, nil)
	defer cancel()

	ctx := context.Background()
	c.OnContentChange(ctx, "")
	c.OnSubmit(ctx)
	time.Sleep(50 * time.Millisecond)

	if msgs := storedMessages(t, st); len(msgs) != 0 {
		t.Fatalf("got %d stored messages, want none for empty input", len(msgs))
	}
}

func TestComposerSubmitCommitsAndStartsFreshDraft(t *testing.T) {
	session := &fakeSession{id: "u1", name: "Ann", resolved: true}
	publisher := &fakePublisher{}
	c, st, cancel := newTestComposer(t, session, publisher)
	defer cancel()

	ctx := context.Background()
	c.OnContentChange(ctx, "hi")
	c.OnSubmit(ctx)
	c.OnContentChange(ctx, "next")

	waitFor(t, "both documents to land", func() bool {
		return len(storedMessages(t, st)) == 2
	})

	var committed, draft *Message
	msgs := storedMessages(t, st)
	for i := range msgs {
		if msgs[i].Completed {
			committed = &msgs[i]
		} else {
			draft = &msgs[i]
		}
	}
	if committed == nil || draft == nil {
		t.Fatalf("msgs = %+v, want one committed and one draft", msgs)
	}
	if committed.Content != "hi" || draft.Content != "next" {
		t.Fatalf("contents = %q/%q, want hi/next", committed.Content, draft.Content)
	}
	if committed.ID == draft.ID {
		t.Fatal("submit must allocate a fresh draft id")
	}
	if c.Draft() != "next" {
		t.Fatalf("local draft = %q, want next", c.Draft())
	}

	waitFor(t, "commit event", func() bool {
		return len(publisher.published()) == 1
	})
	if got := publisher.published()[0]; got.ID != committed.ID || !got.Completed {
		t.Fatalf("published = %+v, want the committed message", got)
	}
}

func TestComposerSubmitPreservesContentAndTimestamp(t *testing.T) {
	session := &fakeSession{id: "u1", name: "Ann", resolved: true}
	c, st, cancel := newTestComposer(t, session, nil)
	defer cancel()

	base := time.UnixMilli(500_000_000)
	now := base
	c.now = func() time.Time { return now }

	ctx := context.Background()
	c.OnContentChange(ctx, "done")
	now = base.Add(time.Minute)
	c.OnSubmit(ctx)

	waitFor(t, "commit to land", func() bool {
		msgs := storedMessages(t, st)
		return len(msgs) == 1 && msgs[0].Completed
	})
	msg := storedMessages(t, st)[0]
	if msg.Content != "done" || msg.Timestamp != base.UnixMilli() {
		t.Fatalf("commit rewrote content/timestamp: %+v", msg)
	}
}
