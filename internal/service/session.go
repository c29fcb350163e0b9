package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
	"github.com/jemaat/portal/internal/domain/model"
	"github.com/jemaat/portal/internal/observability/metrics"
	"github.com/jemaat/portal/internal/observability/statsd"
	"github.com/jemaat/portal/internal/ports"
)

const (
	defaultCredentialTTL  = 24 * time.Hour
	defaultBackendTimeout = 10 * time.Second
)

// SessionOptions groups dependencies shared by every client session.
type SessionOptions struct {
	Backend     ports.Backend
	Credentials ports.CredentialStore
	Audit       ports.AuditSink // optional
	Metrics     statsd.Sink     // optional
	Logger      *slog.Logger

	// CredentialTTL caps how long a persisted token is kept.
	CredentialTTL time.Duration
	// Timeout bounds every backend round trip.
	Timeout time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.CredentialTTL <= 0 {
		o.CredentialTTL = defaultCredentialTTL
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultBackendTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Session owns the SessionState of one browser client. It is the only
// component that mutates that state; consumers read it through Current.
type Session struct {
	clientID string
	opts     SessionOptions
	logger   *slog.Logger

	hydrateOnce sync.Once
	resolved    chan struct{}
	resolveOnce sync.Once

	// writeMu serializes state changes together with their credential I/O.
	writeMu sync.Mutex
	// credExpiry is when the persisted credential lapses; zero if unknown. Guarded by writeMu.
	credExpiry time.Time

	mu        sync.RWMutex
	state     domainauth.SessionState
	epoch     uint64
	loggingIn bool
	lastSeen  time.Time
}

// NewSession creates an Unresolved session for clientID.
func NewSession(clientID string, opts SessionOptions) *Session {
	opts = opts.withDefaults()
	return &Session{
		clientID: clientID,
		opts:     opts,
		logger:   opts.Logger.With("component", "session", "client_id", clientID),
		resolved: make(chan struct{}),
		state:    domainauth.Unresolved(),
		lastSeen: opts.Now(),
	}
}

// ClientID returns the browser client this session belongs to.
func (s *Session) ClientID() string { return s.clientID }

// Current returns a snapshot of the session state.
func (s *Session) Current() domainauth.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Resolved is closed once the state has left Unresolved.
func (s *Session) Resolved() <-chan struct{} { return s.resolved }

// Touch records activity for idle sweeping.
func (s *Session) Touch() {
	now := s.opts.Now()
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen returns the time of the last Touch.
func (s *Session) LastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

// setLocked replaces the state and invalidates any hydrate still in flight.
// Callers hold writeMu.
func (s *Session) setLocked(st domainauth.SessionState) {
	s.mu.Lock()
	s.state = st
	s.epoch++
	s.mu.Unlock()
	if st.Status != domainauth.StatusUnresolved {
		s.resolveOnce.Do(func() { close(s.resolved) })
	}
}

func (s *Session) snapshot() (domainauth.SessionState, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.epoch
}

// Hydrate restores the session from the persisted credential. Only the first
// call does any work. The session always ends up resolved; the returned error
// only explains why it ended Anonymous.
func (s *Session) Hydrate(ctx context.Context) error {
	var err error
	s.hydrateOnce.Do(func() { err = s.hydrate(ctx) })
	return err
}

func (s *Session) hydrate(ctx context.Context) error {
	start := s.opts.Now()
	_, epoch := s.snapshot()

	token, err := s.opts.Credentials.Get(ctx, s.clientID)
	if errors.Is(err, ports.ErrNoCredential) {
		if s.finishHydrate(ctx, epoch, domainauth.Anonymous(), false) {
			s.emit(metrics.SessionMetric{Op: metrics.OpHydrate, Result: metrics.ResultNoop, Duration: s.opts.Now().Sub(start)})
		}
		return nil
	}
	if err != nil {
		err = fmt.Errorf("read credential: %w", err)
		s.failHydrate(ctx, epoch, start, err)
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	profile, err := s.opts.Backend.WhoAmI(callCtx, token)
	cancel()
	if err != nil {
		err = fmt.Errorf("validate credential: %w", err)
		s.failHydrate(ctx, epoch, start, err)
		return err
	}

	id := domainauth.NewIdentity(profile, token)
	if s.finishHydrate(ctx, epoch, domainauth.Authenticated(id), false) {
		s.emit(metrics.SessionMetric{
			Op: metrics.OpHydrate, Result: metrics.ResultSuccess, Role: id.Role.String(), Duration: s.opts.Now().Sub(start),
		})
	}
	return nil
}

func (s *Session) failHydrate(ctx context.Context, epoch uint64, start time.Time, cause error) {
	if !s.finishHydrate(ctx, epoch, domainauth.Anonymous(), true) {
		return
	}
	s.logger.WarnContext(ctx, "session hydration failed", "error", cause)
	s.emit(metrics.SessionMetric{
		Op: metrics.OpHydrate, Result: metrics.ResultError, Err: cause, Duration: s.opts.Now().Sub(start),
	})
	s.audit(ctx, model.AccessEvent{Kind: model.AccessHydrateFailed, Detail: cause.Error()})
}

// finishHydrate applies the hydrate outcome unless a login or logout already
// moved the state. When drop is set the persisted credential is removed too.
func (s *Session) finishHydrate(ctx context.Context, epoch uint64, st domainauth.SessionState, drop bool) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, cur := s.snapshot(); cur != epoch {
		return false
	}
	if drop {
		s.deleteCredential(ctx)
	}
	s.setLocked(st)
	return true
}

// Login exchanges credentials for a session. A second Login while one is in
// flight returns ErrLoginInProgress. On failure the session is Anonymous and the
// error is an *InvalidCredentialsError or an *UnavailableError.
func (s *Session) Login(ctx context.Context, email, password string) (domainauth.Identity, error) {
	s.mu.Lock()
	if s.loggingIn {
		s.mu.Unlock()
		return domainauth.Identity{}, domainauth.ErrLoginInProgress
	}
	s.loggingIn = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loggingIn = false
		s.mu.Unlock()
	}()

	start := s.opts.Now()
	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	res, err := s.opts.Backend.Login(callCtx, email, password)
	cancel()
	if err != nil && !domainauth.IsInvalidCredentials(err) && !domainauth.IsUnavailable(err) {
		err = &domainauth.UnavailableError{Op: "login", Cause: err}
	}

	s.writeMu.Lock()
	if err != nil {
		if cur, _ := s.snapshot(); cur.Status != domainauth.StatusAnonymous {
			s.deleteCredential(ctx)
		}
		s.setLocked(domainauth.Anonymous())
		s.writeMu.Unlock()

		s.emit(metrics.SessionMetric{Op: metrics.OpLogin, Result: metrics.ResultError, Err: err, Duration: s.opts.Now().Sub(start)})
		s.audit(ctx, model.AccessEvent{Kind: model.AccessLoginFailed, Email: email, Detail: err.Error()})
		return domainauth.Identity{}, err
	}

	id := domainauth.NewIdentity(res.Profile, res.Token)
	ttl := s.credentialTTL(res.ExpiresAt)
	s.credExpiry = s.opts.Now().Add(ttl)
	if setErr := s.opts.Credentials.Set(ctx, s.clientID, res.Token, ttl); setErr != nil {
		// The session still works in this process; it just will not survive a restart.
		s.logger.WarnContext(ctx, "persist credential failed", "error", setErr)
	}
	s.setLocked(domainauth.Authenticated(id))
	s.writeMu.Unlock()

	s.emit(metrics.SessionMetric{
		Op: metrics.OpLogin, Result: metrics.ResultSuccess, Role: id.Role.String(), Duration: s.opts.Now().Sub(start),
	})
	s.audit(ctx, identityEvent(model.AccessLoginSucceeded, id, "raw_role="+id.RawRole))
	return id, nil
}

func (s *Session) credentialTTL(expiresAt time.Time) time.Duration {
	ttl := s.opts.CredentialTTL
	if expiresAt.IsZero() {
		return ttl
	}
	if d := expiresAt.Sub(s.opts.Now()); d > 0 && d < ttl {
		return d
	}
	return ttl
}

// handOver moves an Authenticated session to clientID. The credential is
// persisted under the new id and removed from the old one, which ends Anonymous.
// The returned session is resolved and not yet registered anywhere.
func (s *Session) handOver(ctx context.Context, clientID string) (*Session, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur, _ := s.snapshot()
	if !cur.IsAuthenticated() {
		return nil, domainauth.ErrSessionExpired
	}

	ttl := s.opts.CredentialTTL
	expiry := s.credExpiry
	if !expiry.IsZero() {
		if ttl = expiry.Sub(s.opts.Now()); ttl <= 0 {
			s.deleteCredential(ctx)
			s.setLocked(domainauth.Anonymous())
			return nil, domainauth.ErrSessionExpired
		}
	}

	next := NewSession(clientID, s.opts)
	next.hydrateOnce.Do(func() {})
	next.credExpiry = expiry
	if err := s.opts.Credentials.Set(ctx, clientID, cur.Identity.AuthToken, ttl); err != nil {
		next.logger.WarnContext(ctx, "persist credential failed", "error", err)
	}
	next.setLocked(domainauth.Authenticated(*cur.Identity))

	s.deleteCredential(ctx)
	s.setLocked(domainauth.Anonymous())
	s.logger.DebugContext(ctx, "client id rotated", "new_client_id", clientID)
	return next, nil
}

// Logout clears the persisted credential and signs the client out. Backend
// revocation is attempted afterwards and its failure is only logged. Logging
// out an Anonymous session does nothing.
func (s *Session) Logout(ctx context.Context) {
	s.writeMu.Lock()
	cur, _ := s.snapshot()
	if cur.Status == domainauth.StatusAnonymous {
		s.writeMu.Unlock()
		s.emit(metrics.SessionMetric{Op: metrics.OpLogout, Result: metrics.ResultNoop})
		return
	}
	s.deleteCredential(ctx)
	s.setLocked(domainauth.Anonymous())
	s.writeMu.Unlock()

	s.emit(metrics.SessionMetric{Op: metrics.OpLogout, Result: metrics.ResultSuccess})
	if !cur.IsAuthenticated() {
		return
	}
	s.audit(ctx, identityEvent(model.AccessLogout, *cur.Identity, ""))

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeout)
	defer cancel()
	if err := s.opts.Backend.Logout(callCtx, cur.Identity.AuthToken); err != nil {
		s.logger.InfoContext(ctx, "backend logout failed", "error", err)
	}
}

// Invalidate signs the client out after the backend rejected token. It does
// nothing unless token is still the current credential, so a late failure from
// an older login cannot end a newer one.
func (s *Session) Invalidate(ctx context.Context, token string) bool {
	s.writeMu.Lock()
	cur, _ := s.snapshot()
	if !cur.IsAuthenticated() || cur.Identity.AuthToken != token {
		s.writeMu.Unlock()
		return false
	}
	s.deleteCredential(ctx)
	s.setLocked(domainauth.Anonymous())
	s.writeMu.Unlock()

	s.logger.InfoContext(ctx, "session expired", "user_id", cur.Identity.ID)
	s.emit(metrics.SessionMetric{Op: metrics.OpExpired, Result: metrics.ResultSuccess, Role: cur.Identity.Role.String()})
	s.audit(ctx, identityEvent(model.AccessSessionExpired, *cur.Identity, ""))
	return true
}

// WithToken runs fn with the current bearer token. If fn reports
// ErrSessionExpired the session is invalidated before the error is returned.
// An unauthenticated session returns ErrSessionExpired without calling fn.
func (s *Session) WithToken(ctx context.Context, fn func(ctx context.Context, token string) error) error {
	cur := s.Current()
	if !cur.IsAuthenticated() {
		return domainauth.ErrSessionExpired
	}
	token := cur.Identity.AuthToken

	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	err := fn(callCtx, token)
	if errors.Is(err, domainauth.ErrSessionExpired) {
		s.Invalidate(ctx, token)
	}
	return err
}

func (s *Session) deleteCredential(ctx context.Context) {
	if err := s.opts.Credentials.Delete(ctx, s.clientID); err != nil {
		s.logger.WarnContext(ctx, "delete credential failed", "error", err)
	}
}

func (s *Session) emit(m metrics.SessionMetric) {
	metrics.EmitSession(s.opts.Metrics, m)
}

func (s *Session) audit(ctx context.Context, ev model.AccessEvent) {
	if s.opts.Audit == nil {
		return
	}
	ev.ClientID = s.clientID
	ev.CreatedAt = s.opts.Now().UTC()
	if err := s.opts.Audit.Record(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.WarnContext(ctx, "record access event failed", "kind", string(ev.Kind), "error", err)
	}
}

func identityEvent(kind model.AccessEventKind, id domainauth.Identity, detail string) model.AccessEvent {
	return model.AccessEvent{
		Kind:   kind,
		UserID: id.ID,
		Email:  id.Email,
		Role:   id.Role.String(),
		Detail: detail,
	}
}
