package board

import (
	"context"
	"testing"
	"time"

	"github.com/Seklfreak/cool-chat/internal/store"
	"go.uber.org/zap"
)

func TestFilterOnlineTTLBoundary(t *testing.T) {
	now := time.UnixMilli(100_000_000)
	records := []PresenceRecord{
		{Name: "gone", Timestamp: now.Add(-31 * time.Second).UnixMilli()},
		{Name: "edge", Timestamp: now.Add(-30 * time.Second).UnixMilli()},
		{Name: "here", Timestamp: now.Add(-29 * time.Second).UnixMilli()},
	}
	online := FilterOnline(records, now, DefaultPresenceTTL)

	if len(online) != 2 {
		t.Fatalf("online = %v, want edge and here", online)
	}
	if online[0].Name != "edge" || online[1].Name != "here" {
		t.Fatalf("online = [%s %s], want [edge here]", online[0].Name, online[1].Name)
	}
}

func TestFilterOnlineStaggeredHeartbeats(t *testing.T) {
	start := time.UnixMilli(200_000_000)
	records := []PresenceRecord{
		{Name: "first", Timestamp: start.UnixMilli()},
		{Name: "second", Timestamp: start.Add(3 * time.Second).UnixMilli()},
	}
	online := FilterOnline(records, start.Add(32*time.Second), DefaultPresenceTTL)

	if len(online) != 1 || online[0].Name != "second" {
		t.Fatalf("online at t=32s = %v, want only second", online)
	}
}

func TestPresenceMembershipOrderNameDescending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewMemoryStore()
	now := time.Now().UnixMilli()
	for userID, name := range map[string]string{"u1": "Ann", "u2": "Bob"} {
		r := PresenceRecord{Name: name, Timestamp: now}
		if err := st.Upsert(ctx, store.CollectionOnline, userID, r); err != nil {
			t.Fatal(err)
		}
	}

	// still pending, so no local heartbeat pollutes the list
	session := &fakeSession{}
	presence := NewPresence(st, session, DefaultHeartbeatInterval, DefaultPresenceTTL, zap.NewNop())
	go func() { _ = presence.Run(ctx) }()

	waitFor(t, "membership list", func() bool {
		return len(presence.Members()) == 2
	})
	members := presence.Members()
	if members[0].Name != "Bob" || members[1].Name != "Ann" {
		t.Fatalf("members = [%s %s], want [Bob Ann]", members[0].Name, members[1].Name)
	}
}

func TestPresenceFirstHeartbeatIsImmediate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewMemoryStore()
	session := &fakeSession{id: "u1", name: "Ann", resolved: true}
	// long interval: only the synchronous first beat can happen in time
	presence := NewPresence(st, session, time.Hour, DefaultPresenceTTL, zap.NewNop())
	go func() { _ = presence.Run(ctx) }()

	waitFor(t, "own record in membership", func() bool {
		members := presence.Members()
		return len(members) == 1 && members[0].Name == "Ann"
	})
}

func TestPresenceStaleMemberDropsOnNextSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewMemoryStore()
	now := time.Now().UnixMilli()
	stale := PresenceRecord{Name: "Old", Timestamp: now - (45 * time.Second).Milliseconds()}
	fresh := PresenceRecord{Name: "New", Timestamp: now}
	if err := st.Upsert(ctx, store.CollectionOnline, "u1", stale); err != nil {
		t.Fatal(err)
	}
	if err := st.Upsert(ctx, store.CollectionOnline, "u2", fresh); err != nil {
		t.Fatal(err)
	}

	presence := NewPresence(st, &fakeSession{}, DefaultHeartbeatInterval, DefaultPresenceTTL, zap.NewNop())
	go func() { _ = presence.Run(ctx) }()

	waitFor(t, "stale member filtered out", func() bool {
		members := presence.Members()
		return len(members) == 1 && members[0].Name == "New"
	})
}
