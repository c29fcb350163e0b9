package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	authmocks "github.com/jemaat/portal/internal/mocks/auth"
	"github.com/jemaat/portal/internal/ports"
	"github.com/jemaat/portal/internal/service"
)

const (
	testClientCookie = "portal_client"
	testCSRFToken    = "test-csrf-token"
)

// portalFixture wires the full router against in-memory doubles.
type portalFixture struct {
	t        *testing.T
	backend  *authmocks.StubBackend
	creds    *authmocks.MemoryCredentialStore
	audit    *authmocks.RecordingAuditSink
	registry *service.SessionRegistry
	limiter  *LoginLimiter
	handler  http.Handler
}

type fixtureOption func(*RouterServices)

func withAuditReader(r ports.AuditReader) fixtureOption {
	return func(s *RouterServices) { s.Audit = r }
}

func withHydrateWait(d time.Duration) fixtureOption {
	return func(s *RouterServices) { s.ClientCookie.HydrateWait = d }
}

func newPortalFixture(t *testing.T, opts ...fixtureOption) *portalFixture {
	t.Helper()
	f := &portalFixture{
		t:       t,
		backend: authmocks.NewStubBackend(),
		creds:   authmocks.NewMemoryCredentialStore(),
		audit:   &authmocks.RecordingAuditSink{},
		limiter: NewLoginLimiter(60, 20),
	}
	f.registry = service.NewSessionRegistry(service.SessionOptions{
		Backend:     f.backend,
		Credentials: f.creds,
		Audit:       f.audit,
		Timeout:     2 * time.Second,
	})
	content := service.NewContentService(service.ContentServiceOptions{Backend: f.backend})
	services := RouterServices{
		Sessions:     f.registry,
		Content:      content,
		Dashboards:   service.NewDashboardService(service.DashboardServiceOptions{Content: content}),
		Limiter:      f.limiter,
		ClientCookie: ClientSessionConfig{CookieName: testClientCookie, MaxAge: time.Hour, HydrateWait: time.Second},
		LoadingRetry: time.Second,
		TemplateFS:   os.DirFS(TemplatePathFromTest),
		StaticFS:     fstest.MapFS{"css/app.css": {Data: []byte("body{}")}},
	}
	for _, o := range opts {
		o(&services)
	}
	f.handler = NewRouter(services)
	return f
}

// anonymousClient returns a client cookie with nothing persisted for it.
func (f *portalFixture) anonymousClient() *http.Cookie {
	return &http.Cookie{Name: testClientCookie, Value: uuid.NewString()}
}

// signedInClient returns a client cookie whose persisted credential belongs to email.
func (f *portalFixture) signedInClient(email string) *http.Cookie {
	f.t.Helper()
	c := f.anonymousClient()
	require.NoError(f.t, f.creds.Set(context.Background(), c.Value, authmocks.TokenFor(email), time.Hour))
	return c
}

func (f *portalFixture) serve(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func browserGet(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept", "text/html")
	return req
}

func jsonGet(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept", "application/json")
	return req
}

// formPost builds a browser form submission carrying a valid CSRF token.
func formPost(path string, form url.Values) *http.Request {
	if form == nil {
		form = url.Values{}
	}
	form.Set(DefaultCSRFCookieName, testCSRFToken)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRFToken})
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req
}
