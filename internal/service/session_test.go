package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
	"github.com/jemaat/portal/internal/domain/model"
	"github.com/jemaat/portal/internal/mocks"
	authmocks "github.com/jemaat/portal/internal/mocks/auth"
	"github.com/jemaat/portal/internal/observability/statsd"
	"github.com/jemaat/portal/internal/ports"
)

type sessionFixture struct {
	backend *authmocks.StubBackend
	creds   *authmocks.MemoryCredentialStore
	audit   *authmocks.RecordingAuditSink
	metrics *statsd.Recorder
	opts    SessionOptions
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		backend: authmocks.NewStubBackend(),
		creds:   authmocks.NewMemoryCredentialStore(),
		audit:   &authmocks.RecordingAuditSink{},
		metrics: &statsd.Recorder{},
	}
	f.opts = SessionOptions{
		Backend:       f.backend,
		Credentials:   f.creds,
		Audit:         f.audit,
		Metrics:       f.metrics,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		CredentialTTL: time.Hour,
		Timeout:       time.Second,
	}
	return f
}

func (f *sessionFixture) session(clientID string) *Session {
	return NewSession(clientID, f.opts)
}

func TestSession_StartsUnresolved(t *testing.T) {
	f := newSessionFixture(t)
	s := f.session("c1")

	assert.Equal(t, domainauth.StatusUnresolved, s.Current().Status)
	select {
	case <-s.Resolved():
		t.Fatal("resolved before hydrate")
	default:
	}
}

func TestSession_HydrateWithoutCredentialSkipsBackend(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl) // no expectations: any call fails the test

	f := newSessionFixture(t)
	f.opts.Backend = backend
	s := f.session("c1")

	require.NoError(t, s.Hydrate(context.Background()))
	assert.Equal(t, domainauth.StatusAnonymous, s.Current().Status)
	<-s.Resolved()
	assert.Empty(t, f.audit.Events())
}

func TestSession_HydrateValidCredential(t *testing.T) {
	f := newSessionFixture(t)
	token := authmocks.TokenFor("super@example.com")
	require.NoError(t, f.creds.Set(context.Background(), "c1", token, 0))

	s := f.session("c1")
	require.NoError(t, s.Hydrate(context.Background()))

	st := s.Current()
	require.True(t, st.IsAuthenticated())
	assert.Equal(t, domainauth.RoleSuperAdmin, st.Identity.Role)
	assert.Equal(t, "superadmin", st.Identity.RawRole)
	assert.Equal(t, token, st.Identity.AuthToken)

	m := f.metrics.Find("auth.hydrate")
	require.Len(t, m, 1)
	assert.Equal(t, "success", m[0].Tags["result"])
}

func TestSession_HydrateFailureClearsCredential(t *testing.T) {
	tests := map[string]error{
		"rejected":  domainauth.ErrSessionExpired,
		"network":   &domainauth.UnavailableError{Op: "whoami", Cause: errors.New("connection refused")},
		"timeout":   &domainauth.UnavailableError{Op: "whoami", Cause: context.DeadlineExceeded},
		"malformed": &domainauth.UnavailableError{Op: "whoami", Cause: errors.New("malformed response")},
	}
	for name, whoAmIErr := range tests {
		t.Run(name, func(t *testing.T) {
			f := newSessionFixture(t)
			f.backend.WhoAmIFunc = func(context.Context, string) (domainauth.Profile, error) {
				return domainauth.Profile{}, whoAmIErr
			}
			require.NoError(t, f.creds.Set(context.Background(), "c1", "stale", 0))

			s := f.session("c1")
			err := s.Hydrate(context.Background())
			require.ErrorIs(t, err, whoAmIErr)

			assert.Equal(t, domainauth.StatusAnonymous, s.Current().Status)
			_, ok := f.creds.Token("c1")
			assert.False(t, ok, "credential must be cleared")
			assert.Equal(t, []model.AccessEventKind{model.AccessHydrateFailed}, f.audit.Kinds())
		})
	}
}

func TestSession_HydrateCredentialStoreFailure(t *testing.T) {
	f := newSessionFixture(t)
	f.creds.GetErr = errors.New("redis down")

	s := f.session("c1")
	require.Error(t, s.Hydrate(context.Background()))
	assert.Equal(t, domainauth.StatusAnonymous, s.Current().Status)
	_, whoAmI, _, _ := f.backend.Calls()
	assert.Zero(t, whoAmI)
}

func TestSession_HydrateRunsOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)
	backend.EXPECT().
		WhoAmI(gomock.Any(), "tok").
		Return(domainauth.Profile{ID: "9", RawRole: "admin"}, nil).
		Times(1)

	f := newSessionFixture(t)
	f.opts.Backend = backend
	require.NoError(t, f.creds.Set(context.Background(), "c1", "tok", 0))
	s := f.session("c1")

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Hydrate(context.Background())
		}()
	}
	wg.Wait()
	require.NoError(t, s.Hydrate(context.Background()))
	assert.Equal(t, domainauth.RoleAdmin, s.Current().Identity.Role)
}

func TestSession_LoginAsAdmin(t *testing.T) {
	f := newSessionFixture(t)
	s := f.session("c1")
	require.NoError(t, s.Hydrate(context.Background()))

	id, err := s.Login(context.Background(), "admin@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, id.Role)
	assert.Equal(t, "admin_majelis", id.RawRole)
	assert.Equal(t, "/admin/dashboard", domainauth.LandingPath(id.Role))

	st := s.Current()
	require.True(t, st.IsAuthenticated())
	assert.Equal(t, id, *st.Identity)

	tok, ok := f.creds.Token("c1")
	require.True(t, ok)
	assert.Equal(t, authmocks.TokenFor("admin@example.com"), tok)
	assert.Equal(t, time.Hour, f.creds.TTL("c1"))
	assert.Equal(t, []model.AccessEventKind{model.AccessLoginSucceeded}, f.audit.Kinds())
	assert.Equal(t, "admin", f.audit.Events()[0].Role)
}

func TestSession_LoginCredentialTTLFollowsTokenExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	f := newSessionFixture(t)
	f.opts.Now = func() time.Time { return now }
	f.backend.LoginFunc = func(context.Context, string, string) (ports.LoginResult, error) {
		return ports.LoginResult{
			Token:     "jwt",
			Profile:   domainauth.Profile{ID: "1"},
			ExpiresAt: now.Add(10 * time.Minute),
		}, nil
	}

	s := f.session("c1")
	_, err := s.Login(context.Background(), "a@x.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, f.creds.TTL("c1"))
}

func TestSession_LoginInvalidCredentials(t *testing.T) {
	f := newSessionFixture(t)
	s := f.session("c1")
	require.NoError(t, s.Hydrate(context.Background()))

	_, err := s.Login(context.Background(), "admin@example.com", "wrong")
	var ic *domainauth.InvalidCredentialsError
	require.ErrorAs(t, err, &ic)
	assert.Equal(t, "Email atau password salah", ic.Message)
	assert.False(t, domainauth.IsUnavailable(err))
	assert.Equal(t, domainauth.StatusAnonymous, s.Current().Status)
	assert.Equal(t, []model.AccessEventKind{model.AccessLoginFailed}, f.audit.Kinds())
}

func TestSession_LoginUnavailable(t *testing.T) {
	f := newSessionFixture(t)
	f.backend.LoginFunc = func(context.Context, string, string) (ports.LoginResult, error) {
		return ports.LoginResult{}, errors.New("dial tcp: connection refused")
	}
	s := f.session("c1")

	_, err := s.Login(context.Background(), "a@x.com", "pw")
	require.Error(t, err)
	assert.True(t, domainauth.IsUnavailable(err))
	assert.False(t, domainauth.IsInvalidCredentials(err))
	assert.Equal(t, domainauth.StatusAnonymous, s.Current().Status)

	m := f.metrics.Find("auth.login")
	require.Len(t, m, 1)
	assert.Equal(t, "unavailable", m[0].Tags["error_class"])
}

func TestSession_FailedLoginSignsOutPreviousIdentity(t *testing.T) {
	f := newSessionFixture(t)
	s := f.session("c1")
	_, err := s.Login(context.Background(), "admin@example.com", "secret")
	require.NoError(t, err)

	_, err = s.Login(context.Background(), "admin@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, domainauth.StatusAnonymous, s.Current().Status)
	_, ok := f.creds.Token("c1")
	assert.False(t, ok)
}

func TestSession_ConcurrentLoginRejected(t *testing.T) {
	f := newSessionFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.backend.LoginFunc = func(ctx context.Context, email, _ string) (ports.LoginResult, error) {
		close(entered)
		<-release
		return ports.LoginResult{Token: "t", Profile: domainauth.Profile{ID: "1", Email: email}}, nil
	}
	s := f.session("c1")

	done := make(chan error, 1)
	go func() {
		_, err := s.Login(context.Background(), "a@x.com", "pw")
		done <- err
	}()
	<-entered

	_, err := s.Login(context.Background(), "b@x.com", "pw")
	require.ErrorIs(t, err, domainauth.ErrLoginInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, "a@x.com", s.Current().Identity.Email)

	login, _, _, _ := f.backend.Calls()
	assert.Equal(t, 1, login)
}

func TestSession_LoginWinsOverSlowHydrate(t *testing.T) {
	f := newSessionFixture(t)
	require.NoError(t, f.creds.Set(context.Background(), "c1", "old", 0))

	entered := make(chan struct{})
	release := make(chan struct{})
	f.backend.WhoAmIFunc = func(context.Context, string) (domainauth.Profile, error) {
		close(entered)
		<-release
		return domainauth.Profile{}, domainauth.ErrSessionExpired
	}
	s := f.session("c1")

	hydrated := make(chan error, 1)
	go func() { hydrated <- s.Hydrate(context.Background()) }()
	<-entered

	id, err := s.Login(context.Background(), "super@example.com", "secret")
	require.NoError(t, err)

	close(release)
	<-hydrated

	st := s.Current()
	require.True(t, st.IsAuthenticated())
	assert.Equal(t, id.ID, st.Identity.ID)
	tok, ok := f.creds.Token("c1")
	require.True(t, ok, "late hydrate failure must not drop the fresh credential")
	assert.Equal(t, id.AuthToken, tok)
	assert.NotContains(t, f.audit.Kinds(), model.AccessHydrateFailed)
}

func TestSession_Logout(t *testing.T) {
	f := newSessionFixture(t)
	var revoked []string
	f.backend.LogoutFunc = func(_ context.Context, token string) error {
		revoked = append(revoked, token)
		return errors.New("backend down")
	}
	s := f.session("c1")
	id, err := s.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)

	s.Logout(context.Background())
	assert.Equal(t, domainauth.StatusAnonymous, s.Current().Status)
	_, ok := f.creds.Token("c1")
	assert.False(t, ok)
	assert.Equal(t, []string{id.AuthToken}, revoked)

	// Second logout is a no-op.
	s.Logout(context.Background())
	assert.Equal(t, domainauth.StatusAnonymous, s.Current().Status)
	assert.Len(t, revoked, 1)
	assert.Equal(t, []model.AccessEventKind{model.AccessLoginSucceeded, model.AccessLogout}, f.audit.Kinds())
}

func TestSession_LogoutBeforeHydrateResolves(t *testing.T) {
	f := newSessionFixture(t)
	require.NoError(t, f.creds.Set(context.Background(), "c1", authmocks.TokenFor("user@example.com"), 0))
	s := f.session("c1")

	s.Logout(context.Background())
	assert.Equal(t, domainauth.StatusAnonymous, s.Current().Status)
	<-s.Resolved()

	require.NoError(t, s.Hydrate(context.Background()))
	assert.Equal(t, domainauth.StatusAnonymous, s.Current().Status, "hydrate must not undo logout")
}

func TestSession_ExpiredDuringDataCall(t *testing.T) {
	f := newSessionFixture(t)
	f.backend.DoFunc = func(context.Context, string, ports.BackendRequest) (ports.BackendResponse, error) {
		return ports.BackendResponse{}, domainauth.ErrSessionExpired
	}
	s := f.session("c1")
	_, err := s.Login(context.Background(), "admin@example.com", "secret")
	require.NoError(t, err)

	err = s.WithToken(context.Background(), func(ctx context.Context, token string) error {
		_, doErr := f.backend.Do(ctx, token, ports.BackendRequest{Path: "/jemaat"})
		return doErr
	})
	require.ErrorIs(t, err, domainauth.ErrSessionExpired)
	assert.Equal(t, domainauth.StatusAnonymous, s.Current().Status)
	_, ok := f.creds.Token("c1")
	assert.False(t, ok)

	screen := domainauth.MustScreen("admin-congregants", "/admin/congregants", domainauth.RoleAdmin, domainauth.RoleSuperAdmin)
	d := domainauth.Evaluate(s.Current(), screen, "/admin/congregants")
	assert.Equal(t, domainauth.DecisionRedirect, d.Kind)
	assert.Equal(t, "/login?redirect_uri=%2Fadmin%2Fcongregants", d.Location)

	assert.Contains(t, f.audit.Kinds(), model.AccessSessionExpired)
	assert.Len(t, f.metrics.Find("auth.expired"), 1)
}

func TestSession_WithTokenAnonymous(t *testing.T) {
	f := newSessionFixture(t)
	s := f.session("c1")
	called := false
	err := s.WithToken(context.Background(), func(context.Context, string) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, domainauth.ErrSessionExpired)
	assert.False(t, called)
}

func TestSession_InvalidateIgnoresStaleToken(t *testing.T) {
	f := newSessionFixture(t)
	s := f.session("c1")
	_, err := s.Login(context.Background(), "admin@example.com", "secret")
	require.NoError(t, err)

	assert.False(t, s.Invalidate(context.Background(), "some-older-token"))
	assert.True(t, s.Current().IsAuthenticated())

	assert.True(t, s.Invalidate(context.Background(), authmocks.TokenFor("admin@example.com")))
	assert.False(t, s.Current().IsAuthenticated())
	assert.False(t, s.Invalidate(context.Background(), authmocks.TokenFor("admin@example.com")))
}

func TestSession_AuditFailureDoesNotBreakLogin(t *testing.T) {
	f := newSessionFixture(t)
	f.audit.Err = errors.New("db down")
	f.creds.SetErr = errors.New("redis down")
	s := f.session("c1")

	_, err := s.Login(context.Background(), "admin@example.com", "secret")
	require.NoError(t, err)
	assert.True(t, s.Current().IsAuthenticated())
}
