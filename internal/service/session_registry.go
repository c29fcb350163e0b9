package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jemaat/portal/internal/observability/metrics"
)

// SessionRegistry holds one Session per browser client. The first request of a
// client creates its Session and starts hydration in the background.
type SessionRegistry struct {
	opts SessionOptions

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionRegistry creates an empty registry. opts is shared by every Session.
func NewSessionRegistry(opts SessionOptions) *SessionRegistry {
	return &SessionRegistry{
		opts:     opts.withDefaults(),
		sessions: make(map[string]*Session),
	}
}

// Session returns the client's session, creating and hydrating it on first sight.
func (r *SessionRegistry) Session(ctx context.Context, clientID string) *Session {
	r.mu.Lock()
	s, ok := r.sessions[clientID]
	if ok {
		r.mu.Unlock()
		s.Touch()
		return s
	}
	s = NewSession(clientID, r.opts)
	r.sessions[clientID] = s
	active := len(r.sessions)
	r.mu.Unlock()

	metrics.EmitActiveSessions(r.opts.Metrics, active)
	// Hydration outlives the request that triggered it.
	go func() { _ = s.Hydrate(context.WithoutCancel(ctx)) }()
	return s
}

// Await returns the client's session after waiting up to wait for it to resolve.
// The session may still be Unresolved when wait elapses or ctx ends.
func (r *SessionRegistry) Await(ctx context.Context, clientID string, wait time.Duration) *Session {
	s := r.Session(ctx, clientID)
	if wait <= 0 {
		return s
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-s.Resolved():
	case <-timer.C:
	case <-ctx.Done():
	}
	return s
}

// Rotate moves the authenticated session old to a fresh random client id and
// registers it under that id. The old id is forgotten and its credential
// deleted, so a replayed old cookie hydrates as Anonymous. Rotating a session
// that is not Authenticated returns ErrSessionExpired.
func (r *SessionRegistry) Rotate(ctx context.Context, old *Session) (*Session, error) {
	next, err := old.handOver(ctx, uuid.NewString())
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.sessions[old.ClientID()] == old {
		delete(r.sessions, old.ClientID())
	}
	r.sessions[next.ClientID()] = next
	r.mu.Unlock()
	return next, nil
}

// Lookup returns the client's session without creating one.
func (r *SessionRegistry) Lookup(clientID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[clientID]
	return s, ok
}

// Sweep forgets sessions idle for longer than idle and returns how many were
// dropped. Persisted credentials are kept, so a returning client hydrates again.
func (r *SessionRegistry) Sweep(idle time.Duration) int {
	cutoff := r.opts.Now().Add(-idle)

	r.mu.Lock()
	dropped := 0
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(r.sessions, id)
			dropped++
		}
	}
	active := len(r.sessions)
	r.mu.Unlock()

	metrics.EmitActiveSessions(r.opts.Metrics, active)
	return dropped
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
