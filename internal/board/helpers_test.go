package board

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeSession struct {
	id       string
	name     string
	resolved bool
}

func (s *fakeSession) UserID() (string, bool) { return s.id, s.resolved }
func (s *fakeSession) Name() string           { return s.name }

type fakePublisher struct {
	mu   sync.Mutex
	msgs []Message
}

func (p *fakePublisher) PublishCommitted(_ context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePublisher) published() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.msgs...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
