package board

import (
	"encoding/json"
	"time"

	"github.com/Seklfreak/cool-chat/internal/store"
	"go.uber.org/zap"
)

// Message is one logical post attempt. A draft keeps its id and creation
// timestamp for life; content is rewritten on every keystroke until the
// one-way transition to Completed.
type Message struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Content   string `json:"content"`
	Name      string `json:"name"`
	UserID    string `json:"userID"`
	Completed bool   `json:"completed"`
}

// PresenceRecord is one identity's latest heartbeat. Absence of fresh
// heartbeats is the only offline signal.
type PresenceRecord struct {
	Timestamp int64  `json:"timestamp"`
	Name      string `json:"name"`
}

// Protocol constants. The live-draft window is measured from the draft's
// creation timestamp, not its last edit, so a draft still being typed past
// the window disappears from peers' views until committed.
const (
	DefaultMessageLimit      = 10
	DefaultLiveDraftWindow   = 10 * time.Second
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultPresenceTTL       = 30 * time.Second
)

// PartitionMessages splits one snapshot (in display order) into the
// committed view and the live-draft view. Committed entries are shown
// unconditionally; drafts only while their age is within window, inclusive.
// A given id lands in at most one partition since completion is a property
// of the document itself.
//
// The result depends only on the arguments: re-evaluating the same snapshot
// at the same instant yields the same views.
func PartitionMessages(msgs []Message, now time.Time, window time.Duration) (committed, drafts []Message) {
	nowMs := now.UnixMilli()
	for _, m := range msgs {
		if m.Completed {
			committed = append(committed, m)
			continue
		}
		if nowMs-m.Timestamp <= window.Milliseconds() {
			drafts = append(drafts, m)
		}
	}
	return committed, drafts
}

// FilterOnline keeps the records whose last heartbeat is within ttl of now,
// inclusive, preserving snapshot order.
func FilterOnline(records []PresenceRecord, now time.Time, ttl time.Duration) []PresenceRecord {
	nowMs := now.UnixMilli()
	out := make([]PresenceRecord, 0, len(records))
	for _, r := range records {
		if nowMs-r.Timestamp <= ttl.Milliseconds() {
			out = append(out, r)
		}
	}
	return out
}

func decodeMessages(snap store.Snapshot, log *zap.Logger) []Message {
	msgs := make([]Message, 0, len(snap))
	for _, raw := range snap {
		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			log.Warn("dropping malformed message document", zap.Error(err))
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func decodePresence(snap store.Snapshot, log *zap.Logger) []PresenceRecord {
	records := make([]PresenceRecord, 0, len(snap))
	for _, raw := range snap {
		var r PresenceRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			log.Warn("dropping malformed presence document", zap.Error(err))
			continue
		}
		records = append(records, r)
	}
	return records
}

func reverseMessages(msgs []Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
