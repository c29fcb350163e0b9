package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
	"github.com/jemaat/portal/internal/observability/metrics"
	"github.com/jemaat/portal/internal/observability/statsd"
	"github.com/jemaat/portal/internal/service"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *respWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// browserRequestKey is an unexported context key type for browser request detection.
type browserRequestKey struct{}

// BrowserDetection returns a middleware that detects browser requests vs API requests.
// Downstream handlers use it to choose between HTML and JSON responses.
func BrowserDetection() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), browserRequestKey{}, isBrowserRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsBrowserRequest returns true if the current request is from a browser.
func IsBrowserRequest(r *http.Request) bool {
	if isBrowser, ok := r.Context().Value(browserRequestKey{}).(bool); ok {
		return isBrowser
	}
	return isBrowserRequest(r)
}

// isBrowserRequest treats htmx and HTML-accepting requests as browsers.
// Anything under /api/ or /static/ never is.
func isBrowserRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/static/") {
		return false
	}
	if IsHTMX(r) {
		return true
	}
	accept := r.Header.Get("Accept")
	if accept == "" {
		return true
	}
	return strings.Contains(accept, "text/html")
}

// SessionProvider hands out the per-client session.
type SessionProvider interface {
	Await(ctx context.Context, clientID string, wait time.Duration) *service.Session
	// Rotate moves an authenticated session to a fresh client id.
	Rotate(ctx context.Context, old *service.Session) (*service.Session, error)
}

var _ SessionProvider = (*service.SessionRegistry)(nil)

// ClientSessionConfig configures the ClientSession middleware.
type ClientSessionConfig struct {
	Sessions    SessionProvider
	CookieName  string
	MaxAge      time.Duration
	Domain      string
	Secure      bool
	HydrateWait time.Duration
}

func (c ClientSessionConfig) withDefaults() ClientSessionConfig {
	if c.CookieName == "" {
		c.CookieName = "portal_client"
	}
	return c
}

// setCookie issues clientID as the client cookie.
func (c ClientSessionConfig) setCookie(w http.ResponseWriter, r *http.Request, clientID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.CookieName,
		Value:    clientID,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.Secure || isForwardedHTTPS(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(c.MaxAge.Seconds()),
	})
}

// ClientSession identifies the browser client by its cookie, issuing a fresh
// random id when the cookie is missing or malformed, and attaches the client's
// session to the request context. The first request of a client starts its
// hydration and waits up to HydrateWait for it.
func ClientSession(cfg ClientSessionConfig) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipClientSession(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			clientID := clientIDFromCookie(r, cfg.CookieName)
			if clientID == "" {
				clientID = uuid.NewString()
				cfg.setCookie(w, r, clientID)
			}

			session := cfg.Sessions.Await(r.Context(), clientID, cfg.HydrateWait)
			next.ServeHTTP(w, r.WithContext(SetClientSessionInContext(r.Context(), session)))
		})
	}
}

func skipClientSession(path string) bool {
	return strings.HasPrefix(path, "/static/") || path == "/healthz" || path == "/favicon.ico"
}

func clientIDFromCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return ""
	}
	return id.String()
}

// Gate performs access gate decisions for protected screens.
type Gate struct {
	Renderer *TemplateRenderer // optional; a plain loading page is written without it
	Metrics  statsd.Sink
	// RetryAfter is advertised while the session is still resolving.
	RetryAfter time.Duration
	Logger     *slog.Logger
}

// RequireScreen guards next with screen. Browsers are redirected with 303 (or
// Hx-Redirect for htmx) and see a loading page while the session resolves.
// JSON clients get 401 when anonymous, 404 when their role may not view the
// screen, and 503 while resolving.
func (g *Gate) RequireScreen(screen domainauth.Screen) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := CurrentState(r.Context())
			d := domainauth.Evaluate(state, screen, requestedPath(r))
			metrics.EmitGateDecision(g.Metrics, screen.Name, d.Kind.String())

			switch d.Kind {
			case domainauth.DecisionRender:
				w.Header().Set("Cache-Control", "no-store")
				next.ServeHTTP(w, r)
			case domainauth.DecisionLoading:
				g.writeLoading(w, r)
			default:
				if IsBrowserRequest(r) {
					redirectTo(w, r, d.Location)
					return
				}
				if state.IsAuthenticated() {
					WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("not found")})
					return
				}
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "authentication_required",
					Err:     errors.New("authentication required"),
				})
			}
		})
	}
}

func (g *Gate) retryAfter() time.Duration {
	if g.RetryAfter <= 0 {
		return time.Second
	}
	return g.RetryAfter
}

const plainLoadingPage = `<!doctype html><html><head><meta http-equiv="refresh" content="%s">` +
	`<title>Memuat...</title></head><body><p>Memuat sesi...</p></body></html>`

func (g *Gate) writeLoading(w http.ResponseWriter, r *http.Request) {
	secs := strconv.Itoa(int(g.retryAfter().Round(time.Second).Seconds()))
	if secs == "0" {
		secs = "1"
	}
	w.Header().Set("Retry-After", secs)
	w.Header().Set("Cache-Control", "no-store")

	if !IsBrowserRequest(r) {
		WriteError(w, ErrorParams{
			Code:    http.StatusServiceUnavailable,
			ErrCode: "session_loading",
			Err:     errors.New("session is still loading"),
		})
		return
	}

	if g.Renderer != nil {
		data := NewTemplateData(r, PageMeta{Title: "Memuat"}).With("RefreshSeconds", secs).Build()
		err := g.Renderer.Render(w, "loading", data)
		if err == nil {
			return
		}
		if g.Logger != nil {
			g.Logger.ErrorContext(r.Context(), "render loading page failed", "error", err)
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, plainLoadingPage, secs)
}

// redirectTo sends the browser to location: Hx-Redirect for htmx, 303 otherwise.
func redirectTo(w http.ResponseWriter, r *http.Request, location string) {
	if IsHTMX(r) {
		redirectHX(w, location)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// requestedPath is the path to return to after signing in. For htmx requests
// it is the page the user was on rather than the fragment URL.
func requestedPath(r *http.Request) string {
	if IsHTMX(r) {
		if current := safeRedirectFromURL(r.Header.Get("Hx-Current-Url")); current != "" {
			return current
		}
	}
	return r.URL.RequestURI()
}

func safeRedirectFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	// Reject scheme-relative or host-only references.
	if u.Host != "" && !u.IsAbs() {
		return ""
	}
	if u.IsAbs() {
		return domainauth.SafeRedirectPath(u.RequestURI(), "")
	}
	return domainauth.SafeRedirectPath(raw, "")
}
