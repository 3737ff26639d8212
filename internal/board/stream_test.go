package board

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/Seklfreak/cool-chat/internal/store"
	"go.uber.org/zap"
)

func TestPartitionMessagesWindowBoundary(t *testing.T) {
	now := time.UnixMilli(100_000_000)
	msgs := []Message{
		{ID: "a", Timestamp: now.Add(-11 * time.Second).UnixMilli()},
		{ID: "b", Timestamp: now.Add(-10 * time.Second).UnixMilli()},
		{ID: "c", Timestamp: now.Add(-9 * time.Second).UnixMilli()},
	}
	_, drafts := PartitionMessages(msgs, now, DefaultLiveDraftWindow)

	if len(drafts) != 2 {
		t.Fatalf("drafts = %v, want ids b and c", drafts)
	}
	if drafts[0].ID != "b" || drafts[1].ID != "c" {
		t.Fatalf("drafts = [%s %s], want [b c]", drafts[0].ID, drafts[1].ID)
	}
}

func TestPartitionMessagesMutualExclusion(t *testing.T) {
	now := time.UnixMilli(100_000_000)
	msgs := []Message{
		{ID: "old", Timestamp: now.Add(-time.Hour).UnixMilli(), Completed: true},
		{ID: "fresh", Timestamp: now.Add(-time.Second).UnixMilli(), Completed: true},
		{ID: "typing", Timestamp: now.Add(-time.Second).UnixMilli()},
		{ID: "stale", Timestamp: now.Add(-time.Minute).UnixMilli()},
	}
	committed, drafts := PartitionMessages(msgs, now, DefaultLiveDraftWindow)

	seen := map[string]int{}
	for _, m := range committed {
		seen[m.ID]++
	}
	for _, m := range drafts {
		seen[m.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("id %s appears in %d partitions", id, n)
		}
	}
	// committed entries show regardless of age; stale drafts vanish
	if len(committed) != 2 {
		t.Fatalf("committed = %v, want old and fresh", committed)
	}
	if len(drafts) != 1 || drafts[0].ID != "typing" {
		t.Fatalf("drafts = %v, want only typing", drafts)
	}
}

func TestPartitionMessagesIdempotent(t *testing.T) {
	now := time.UnixMilli(100_000_000)
	msgs := []Message{
		{ID: "a", Timestamp: now.Add(-time.Second).UnixMilli(), Completed: true},
		{ID: "b", Timestamp: now.Add(-2 * time.Second).UnixMilli()},
	}
	c1, d1 := PartitionMessages(msgs, now, DefaultLiveDraftWindow)
	c2, d2 := PartitionMessages(msgs, now, DefaultLiveDraftWindow)

	if !reflect.DeepEqual(c1, c2) || !reflect.DeepEqual(d1, d2) {
		t.Fatalf("re-evaluation changed the views: %v/%v vs %v/%v", c1, d1, c2, d2)
	}
}

func TestStreamDraftThenCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewMemoryStore()
	stream := NewStream(st, 10, DefaultLiveDraftWindow, zap.NewNop())
	go func() { _ = stream.Run(ctx) }()

	ts := time.Now().UnixMilli()
	draft := Message{ID: "X", Timestamp: ts, Content: "hi", Name: "Ann", UserID: "u1"}
	if err := st.Upsert(ctx, store.CollectionMessages, draft.ID, draft); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "draft to appear in live view", func() bool {
		v := stream.View()
		return len(v.LiveDrafts) == 1 && v.LiveDrafts[0].ID == "X" && len(v.Committed) == 0
	})

	draft.Completed = true
	if err := st.Upsert(ctx, store.CollectionMessages, draft.ID, draft); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "commit to move the entry", func() bool {
		v := stream.View()
		return len(v.Committed) == 1 && v.Committed[0].ID == "X" && len(v.LiveDrafts) == 0
	})
}

func TestStreamKeepsNewestTenAscending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewMemoryStore()
	base := time.Now().UnixMilli()
	for i := 0; i < 12; i++ {
		m := Message{
			ID:        fmt.Sprintf("m%d", i),
			Timestamp: base + int64(i),
			Content:   "x",
			Completed: true,
		}
		if err := st.Upsert(ctx, store.CollectionMessages, m.ID, m); err != nil {
			t.Fatal(err)
		}
	}

	stream := NewStream(st, 10, DefaultLiveDraftWindow, zap.NewNop())
	go func() { _ = stream.Run(ctx) }()

	waitFor(t, "full committed view", func() bool {
		return len(stream.View().Committed) == 10
	})

	committed := stream.View().Committed
	if committed[0].ID != "m2" || committed[9].ID != "m11" {
		t.Fatalf("window = %s..%s, want m2..m11", committed[0].ID, committed[9].ID)
	}
	for i := 1; i < len(committed); i++ {
		if committed[i-1].Timestamp > committed[i].Timestamp {
			t.Fatalf("committed view not ascending at %d", i)
		}
	}
}
