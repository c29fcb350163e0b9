package devauth

// Package devauth provides an in-process church API for local development.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
	"github.com/jemaat/portal/internal/ports"
)

const invalidLoginMessage = "Email atau password salah."

// Config controls the dev backend behavior.
type Config struct {
	// Users is required; see LoadUsersFile and DefaultUsers.
	Users []User
	// TokenTTL bounds issued tokens. Defaults to 8h.
	TokenTTL time.Duration
	// Now is used for token expiry; defaults to time.Now.
	Now func() time.Time
}

type issued struct {
	email     string
	expiresAt time.Time
}

// Provider implements ports.Backend for local development.
// Tokens are random strings held in memory and lost on restart.
type Provider struct {
	users    map[string]User
	tokenTTL time.Duration
	now      func() time.Time
	content  *contentStore

	mu     sync.Mutex
	tokens map[string]issued
}

var _ ports.Backend = (*Provider)(nil)

// NewProvider constructs a dev backend from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if len(cfg.Users) == 0 {
		return nil, errors.New("dev auth: at least one user is required")
	}
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = 8 * time.Hour
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	users := make(map[string]User, len(cfg.Users))
	for _, u := range cfg.Users {
		users[strings.ToLower(u.Email)] = u
	}
	return &Provider{
		users:    users,
		tokenTTL: ttl,
		now:      now,
		content:  newContentStore(),
		tokens:   make(map[string]issued),
	}, nil
}

// Login checks the bcrypt hash and issues a fresh token.
func (p *Provider) Login(_ context.Context, email, password string) (ports.LoginResult, error) {
	u, ok := p.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return ports.LoginResult{}, &domainauth.InvalidCredentialsError{Message: invalidLoginMessage}
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return ports.LoginResult{}, &domainauth.InvalidCredentialsError{Message: invalidLoginMessage}
	}

	token, err := randomString(32)
	if err != nil {
		return ports.LoginResult{}, &domainauth.UnavailableError{Op: "login", Cause: fmt.Errorf("generate token: %w", err)}
	}
	exp := p.now().Add(p.tokenTTL)

	p.mu.Lock()
	p.tokens[token] = issued{email: u.Email, expiresAt: exp}
	p.mu.Unlock()

	return ports.LoginResult{Token: token, Profile: u.profile(), ExpiresAt: exp}, nil
}

// WhoAmI resolves a token issued by Login.
func (p *Provider) WhoAmI(_ context.Context, token string) (domainauth.Profile, error) {
	u, ok := p.lookup(token)
	if !ok {
		return domainauth.Profile{}, domainauth.ErrSessionExpired
	}
	return u.profile(), nil
}

// Logout revokes token.
func (p *Provider) Logout(_ context.Context, token string) error {
	p.mu.Lock()
	delete(p.tokens, token)
	p.mu.Unlock()
	return nil
}

// Do serves the content endpoints from memory. Reads without a token are
// allowed so the public site works; a token that is present must be valid.
func (p *Provider) Do(_ context.Context, token string, req ports.BackendRequest) (ports.BackendResponse, error) {
	anonymousRead := token == "" && (req.Method == "" || req.Method == http.MethodGet)
	if !anonymousRead {
		if _, ok := p.lookup(token); !ok {
			return ports.BackendResponse{}, domainauth.ErrSessionExpired
		}
	}
	return p.content.serve(req), nil
}

func (p *Provider) lookup(token string) (User, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.tokens[token]
	if !ok {
		return User{}, false
	}
	if !p.now().Before(t.expiresAt) {
		delete(p.tokens, token)
		return User{}, false
	}
	u, ok := p.users[t.email]
	return u, ok
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	// Compute number of random bytes needed to produce at least n base64 URL chars
	b := make([]byte, (n*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
