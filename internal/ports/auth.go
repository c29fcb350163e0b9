package ports

// Package ports defines interfaces (hexagonal ports) for the session gate and content forwarding.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"
	"net/url"
	"time"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
)

// ErrNoCredential is returned by a CredentialStore when the client has no persisted token.
var ErrNoCredential = errors.New("no credential stored")

// LoginResult is what the backend returns for accepted credentials.
// ExpiresAt is zero when the token carries no readable expiry.
type LoginResult struct {
	Token     string
	Profile   domainauth.Profile
	ExpiresAt time.Time
}

// BackendRequest is a forwarded call to the church API. Path is relative to the API base URL.
type BackendRequest struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// BackendResponse carries the raw reply of a forwarded call.
type BackendResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

// Backend is the remote church REST API.
type Backend interface {
	// Login exchanges email and password for a bearer token.
	// Rejections are *domainauth.InvalidCredentialsError, everything else *domainauth.UnavailableError.
	Login(ctx context.Context, email, password string) (LoginResult, error)

	// WhoAmI validates token and returns the profile it belongs to.
	// A rejected token yields domainauth.ErrSessionExpired.
	WhoAmI(ctx context.Context, token string) (domainauth.Profile, error)

	// Logout invalidates token server side. Callers treat failures as non-fatal.
	Logout(ctx context.Context, token string) error

	// Do forwards an authenticated request. A rejected token yields domainauth.ErrSessionExpired.
	// Non-2xx statuses other than 401 are returned in the response, not as errors.
	Do(ctx context.Context, token string, req BackendRequest) (BackendResponse, error)
}

// CredentialStore persists one bearer token per browser client.
type CredentialStore interface {
	Get(ctx context.Context, clientID string) (string, error)
	// Set stores token; ttl <= 0 means no expiry.
	Set(ctx context.Context, clientID, token string, ttl time.Duration) error
	Delete(ctx context.Context, clientID string) error
}

// ContentCache stores rendered public listings, grouped by resource for invalidation.
type ContentCache interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, resource, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, resource, key string, value []byte, ttl time.Duration) error
	// Invalidate drops every entry of resource.
	Invalidate(ctx context.Context, resource string) error
}
