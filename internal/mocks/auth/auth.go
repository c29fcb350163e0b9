package auth

// Package auth contains simple hand-written test doubles for the session ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
	"github.com/jemaat/portal/internal/domain/model"
	"github.com/jemaat/portal/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.Backend         = (*StubBackend)(nil)
	_ ports.CredentialStore = (*MemoryCredentialStore)(nil)
	_ ports.AuditSink       = (*RecordingAuditSink)(nil)
)

// StubBackend simulates the church API. Unset funcs fall back to a fixed account table.
type StubBackend struct {
	LoginFunc  func(ctx context.Context, email, password string) (ports.LoginResult, error)
	WhoAmIFunc func(ctx context.Context, token string) (domainauth.Profile, error)
	LogoutFunc func(ctx context.Context, token string) error
	DoFunc     func(ctx context.Context, token string, req ports.BackendRequest) (ports.BackendResponse, error)

	// Accounts maps email to password and profile for the default behavior.
	Accounts map[string]StubAccount

	mu          sync.Mutex
	loginCalls  int
	whoAmICalls int
	logoutCalls int
	doCalls     int
}

// StubAccount is one account known to StubBackend.
type StubAccount struct {
	Password string
	Profile  domainauth.Profile
}

// NewStubBackend creates a StubBackend with one account per canonical role.
func NewStubBackend() *StubBackend {
	return &StubBackend{
		Accounts: map[string]StubAccount{
			"super@example.com": {
				Password: "secret",
				Profile:  domainauth.Profile{ID: "1", DisplayName: "Super", Email: "super@example.com", RawRole: "superadmin"},
			},
			"admin@example.com": {
				Password: "secret",
				Profile:  domainauth.Profile{ID: "2", DisplayName: "Majelis", Email: "admin@example.com", RawRole: "admin_majelis"},
			},
			"user@example.com": {
				Password: "secret",
				Profile:  domainauth.Profile{ID: "3", DisplayName: "Jemaat", Email: "user@example.com", RawRole: "jemaat"},
			},
		},
	}
}

// TokenFor returns the token the default behavior issues for email.
func TokenFor(email string) string { return "token-" + email }

func (b *StubBackend) Login(ctx context.Context, email, password string) (ports.LoginResult, error) {
	b.mu.Lock()
	b.loginCalls++
	b.mu.Unlock()

	if b.LoginFunc != nil {
		return b.LoginFunc(ctx, email, password)
	}
	acct, ok := b.Accounts[email]
	if !ok || acct.Password != password {
		return ports.LoginResult{}, &domainauth.InvalidCredentialsError{Message: "Email atau password salah"}
	}
	return ports.LoginResult{Token: TokenFor(email), Profile: acct.Profile}, nil
}

func (b *StubBackend) WhoAmI(ctx context.Context, token string) (domainauth.Profile, error) {
	b.mu.Lock()
	b.whoAmICalls++
	b.mu.Unlock()

	if b.WhoAmIFunc != nil {
		return b.WhoAmIFunc(ctx, token)
	}
	for email, acct := range b.Accounts {
		if TokenFor(email) == token {
			return acct.Profile, nil
		}
	}
	return domainauth.Profile{}, domainauth.ErrSessionExpired
}

func (b *StubBackend) Logout(ctx context.Context, token string) error {
	b.mu.Lock()
	b.logoutCalls++
	b.mu.Unlock()

	if b.LogoutFunc != nil {
		return b.LogoutFunc(ctx, token)
	}
	return nil
}

func (b *StubBackend) Do(ctx context.Context, token string, req ports.BackendRequest) (ports.BackendResponse, error) {
	b.mu.Lock()
	b.doCalls++
	b.mu.Unlock()

	if b.DoFunc != nil {
		return b.DoFunc(ctx, token, req)
	}
	return ports.BackendResponse{Status: 200, ContentType: "application/json", Body: []byte("[]")}, nil
}

// Calls returns how often each method was invoked.
func (b *StubBackend) Calls() (login, whoAmI, logout, do int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loginCalls, b.whoAmICalls, b.logoutCalls, b.doCalls
}

// MemoryCredentialStore is an in-memory credential store with failure injection.
type MemoryCredentialStore struct {
	mu     sync.Mutex
	tokens map[string]string
	ttls   map[string]time.Duration

	GetErr    error
	SetErr    error
	DeleteErr error
}

// NewMemoryCredentialStore creates an empty store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{tokens: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *MemoryCredentialStore) Get(_ context.Context, clientID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return "", m.GetErr
	}
	tok, ok := m.tokens[clientID]
	if !ok {
		return "", ports.ErrNoCredential
	}
	return tok, nil
}

func (m *MemoryCredentialStore) Set(_ context.Context, clientID, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	if clientID == "" {
		return errors.New("client ID cannot be empty")
	}
	m.tokens[clientID] = token
	m.ttls[clientID] = ttl
	return nil
}

func (m *MemoryCredentialStore) Delete(_ context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.tokens, clientID)
	delete(m.ttls, clientID)
	return nil
}

// Token returns the stored token without going through Get's error injection.
func (m *MemoryCredentialStore) Token(clientID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[clientID]
	return tok, ok
}

// TTL returns the ttl used by the last Set for clientID.
func (m *MemoryCredentialStore) TTL(clientID string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[clientID]
}

// RecordingAuditSink keeps recorded events in memory.
type RecordingAuditSink struct {
	mu     sync.Mutex
	events []model.AccessEvent
	Err    error
}

func (r *RecordingAuditSink) Record(_ context.Context, ev model.AccessEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *RecordingAuditSink) Events() []model.AccessEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.AccessEvent(nil), r.events...)
}

// Kinds returns the kinds of the recorded events in order.
func (r *RecordingAuditSink) Kinds() []model.AccessEventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.AccessEventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}
