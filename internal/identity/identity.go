package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Identity is the opaque per-session credential handed out by the identity
// service. UserID is stable for the lifetime of the session.
type Identity struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// Authenticator is the external identity collaborator.
type Authenticator interface {
	SignInAnonymously(ctx context.Context) (Identity, error)
}

// AuthError wraps a failed sign-in attempt.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("identity: sign-in: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// ChangeFunc observes identity transitions. ok is false when the session
// has been invalidated.
type ChangeFunc func(id Identity, ok bool)

// Session resolves an anonymous identity in the background and holds the
// locally-mutable display name. Until the first resolve succeeds the
// session is pending: UserID reports ok=false and no component may issue
// writes attributed to it. Sign-in is retried indefinitely; no fallback
// identity is ever fabricated.
type Session struct {
	auth Authenticator
	log  *zap.Logger

	mu       sync.RWMutex
	id       Identity
	resolved bool
	name     string
	onChange []ChangeFunc

	ready     chan struct{}
	readyOnce sync.Once

	initialBackoff time.Duration
}

func NewSession(auth Authenticator, log *zap.Logger) *Session {
	return &Session{
		auth:           auth,
		log:            log,
		name:           RandomName(),
		ready:          make(chan struct{}),
		initialBackoff: time.Second,
	}
}

// Start launches the background sign-in loop. It returns immediately.
func (s *Session) Start(ctx context.Context) {
	go s.signInLoop(ctx)
}

func (s *Session) signInLoop(ctx context.Context) {
	backoff := s.initialBackoff
	for {
		id, err := s.auth.SignInAnonymously(ctx)
		if err == nil {
			s.resolve(id)
			return
		}
		s.log.Warn("anonymous sign-in failed, retrying",
			zap.Duration("backoff", backoff), zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (s *Session) resolve(id Identity) {
	s.mu.Lock()
	s.id = id
	s.resolved = true
	callbacks := append([]ChangeFunc(nil), s.onChange...)
	s.mu.Unlock()

	s.log.Info("identity resolved", zap.String("user_id", id.UserID))
	for _, fn := range callbacks {
		fn(id, true)
	}
	// observers registered before resolve have been notified at this point
	s.readyOnce.Do(func() { close(s.ready) })
}

// Invalidate drops the resolved identity, returning the session to the
// pending state and notifying observers.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.id = Identity{}
	s.resolved = false
	callbacks := append([]ChangeFunc(nil), s.onChange...)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(Identity{}, false)
	}
}

// UserID returns the resolved user id; ok is false while pending.
func (s *Session) UserID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id.UserID, s.resolved
}

// Ready is closed once the identity first resolves.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// Name returns the current display name.
func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// SetName updates the display name. An empty name draws a fresh one from
// the pool instead; names are never validated for uniqueness.
func (s *Session) SetName(name string) string {
	if name == "" {
		name = RandomName()
	}
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
	return name
}

// OnChange registers an observer for resolve/invalidate transitions. If the
// session is already resolved the callback fires immediately.
func (s *Session) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	id, resolved := s.id, s.resolved
	s.mu.Unlock()

	if resolved {
		fn(id, true)
	}
}
