package httpx

import (
	"context"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
	"github.com/jemaat/portal/internal/service"
)

// clientSessionKey is an unexported context key type to avoid collisions across packages.
type clientSessionKey struct{}

// SetClientSessionInContext returns a child context that carries the client's session.
// If session is nil, the original ctx is returned unchanged.
func SetClientSessionInContext(ctx context.Context, session *service.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, clientSessionKey{}, session)
}

// ClientSessionFromContext returns the client's session and whether one is present.
func ClientSessionFromContext(ctx context.Context) (*service.Session, bool) {
	s, ok := ctx.Value(clientSessionKey{}).(*service.Session)
	return s, ok && s != nil
}

// CurrentState returns the session state of the requesting client. Requests
// that bypassed ClientSession are treated as anonymous.
func CurrentState(ctx context.Context) domainauth.SessionState {
	if s, ok := ClientSessionFromContext(ctx); ok {
		return s.Current()
	}
	return domainauth.Anonymous()
}

// CurrentIdentity returns the signed-in identity, if any.
func CurrentIdentity(ctx context.Context) (domainauth.Identity, bool) {
	st := CurrentState(ctx)
	if !st.IsAuthenticated() {
		return domainauth.Identity{}, false
	}
	return *st.Identity, true
}
