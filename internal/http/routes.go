package httpx

import (
	"bytes"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	portal "github.com/jemaat/portal"
	"github.com/jemaat/portal/internal/domain/model"
	apperrors "github.com/jemaat/portal/internal/errors"
	"github.com/jemaat/portal/internal/observability/statsd"
	"github.com/jemaat/portal/internal/ports"
	"github.com/jemaat/portal/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Sessions   SessionProvider
	Content    *service.ContentService
	Dashboards *service.DashboardService
	// Optional: access log for the super admin audit screen.
	Audit   ports.AuditReader
	Limiter *LoginLimiter // optional login throttle
	Metrics statsd.Sink
	// HealthChecks are run by GET /healthz, keyed by dependency name.
	HealthChecks map[string]HealthCheck

	ClientCookie ClientSessionConfig // Sessions is filled from above
	CSRF         CSRFConfig
	// LoadingRetry is advertised to clients while a session resolves.
	LoadingRetry time.Duration

	// TemplateFS and StaticFS override the embedded or on-disk assets.
	TemplateFS fs.FS
	StaticFS   fs.FS

	IsDev  bool         // Development mode flag for hot reloading, etc.
	Logger *slog.Logger // Logger for template and HTTP errors (optional)
}

// NewRouter creates and configures a new HTTP router with browser middleware.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	renderer := setupRenderer(services, logger)
	pages := pageResponder{T: renderer, Logger: logger}
	gate := &Gate{Renderer: renderer, Metrics: services.Metrics, RetryAfter: services.LoadingRetry, Logger: logger}

	mux.Handle("GET /healthz", healthHandler(services.HealthChecks))
	mux.Handle("GET /static/", staticHandler(services))

	registerAuthRoutes(mux, &AuthHandlers{
		pageResponder: pages,
		Sessions:      services.Sessions,
		Cookie:        services.ClientCookie,
		Limiter:       services.Limiter,
	})

	content := &ContentHandlers{pageResponder: pages, Content: services.Content}
	registerPublicRoutes(mux, content)
	registerContentScreens(mux, content, gate)

	dash := &DashboardHandlers{pageResponder: pages, Dashboards: services.Dashboards, Audit: services.Audit}
	registerDashboardRoutes(mux, dash, gate)

	var handler http.Handler = &notFoundHandler{mux: mux, pages: pages}

	csrf := CSRFProtection(services.CSRF)
	cookie := services.ClientCookie
	cookie.Sessions = services.Sessions

	handler = csrf(handler)
	handler = ClientSession(cookie)(handler)
	handler = BrowserDetection()(handler)
	handler = Logging(logger)(handler)
	return Recover(logger)(handler)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /login", h.LoginPage)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("POST /logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
}

func registerPublicRoutes(mux *http.ServeMux, h *ContentHandlers) {
	mux.HandleFunc("GET /{$}", h.Home)
	for _, res := range model.ContentResources() {
		if !res.Public {
			continue
		}
		mux.Handle("GET /"+res.Name, h.PublicList(res))
		mux.Handle("GET /"+res.Name+"/{id}", h.PublicDetail(res))
	}
}

// registerContentScreens wires the management routes of every content
// resource under the path of the screen that manages it.
func registerContentScreens(mux *http.ServeMux, h *ContentHandlers, gate *Gate) {
	for _, res := range model.ContentResources() {
		screen := mustScreenByName(res.Screen)
		base := screen.Path
		wrap := gate.RequireScreen(screen)

		mux.Handle("GET "+base, wrap(h.AdminList(res, base)))
		mux.Handle("GET "+base+"/new", wrap(h.AdminNew(res, base)))
		mux.Handle("GET "+base+"/export", wrap(h.AdminExport(res)))
		mux.Handle("POST "+base, wrap(h.AdminCreate(res, base)))
		mux.Handle("GET "+base+"/{id}/edit", wrap(h.AdminEdit(res, base)))
		mux.Handle("POST "+base+"/{id}", wrap(h.AdminUpdate(res, base)))
		mux.Handle("PUT "+base+"/{id}", wrap(h.AdminUpdate(res, base)))
		mux.Handle("POST "+base+"/{id}/delete", wrap(h.AdminDelete(res, base)))
		mux.Handle("DELETE "+base+"/{id}", wrap(h.AdminDelete(res, base)))
	}
}

func registerDashboardRoutes(mux *http.ServeMux, h *DashboardHandlers, gate *Gate) {
	screenRoute := func(name string, fn http.HandlerFunc) {
		s := mustScreenByName(name)
		mux.Handle("GET "+s.Path, gate.RequireScreen(s)(fn))
	}
	screenRoute(ScreenAdminDashboard, h.Admin)
	screenRoute(ScreenSuperAdminDashboard, h.SuperAdmin)
	screenRoute(ScreenSuperAdminAudit, h.AuditLog)
}

// setupRenderer picks the template source: an explicit override, the
// working tree in dev mode, or the embedded copy.
func setupRenderer(services RouterServices, logger *slog.Logger) *TemplateRenderer {
	templateFS := services.TemplateFS
	if templateFS == nil {
		if services.IsDev {
			templateFS = os.DirFS(TemplatePathFromRoot)
		} else {
			sub, err := fs.Sub(portal.TemplateFS, TemplatePathFromRoot)
			if err != nil {
				logger.Error("failed to create sub-filesystem for templates; falling back to disk", slog.Any("error", err))
				sub = os.DirFS(TemplatePathFromRoot)
			}
			templateFS = sub
		}
	}

	tr, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: templateFS,
		DevMode:    services.IsDev,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to create template renderer", slog.Any("error", err))
		return nil
	}
	return tr
}

// staticHandler serves /static/* from disk in dev mode and from the embedded
// FS otherwise.
func staticHandler(services RouterServices) http.Handler {
	staticFS := services.StaticFS
	if staticFS == nil {
		if services.IsDev {
			staticFS = os.DirFS(StaticPathFromRoot)
		} else {
			sub, err := fs.Sub(portal.StaticFS, StaticPathFromRoot)
			if err != nil {
				sub = os.DirFS(StaticPathFromRoot)
			}
			staticFS = sub
		}
	}
	files := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if services.IsDev {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		}
		files.ServeHTTP(w, r)
	})
}

// notFoundHandler wraps a ServeMux and provides custom 404 handling.
type notFoundHandler struct {
	mux   *http.ServeMux
	pages pageResponder
}

// ServeHTTP implements http.Handler and provides custom 404 handling.
func (h *notFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cw := newCaptureWriter(w)
	h.mux.ServeHTTP(cw, r)

	if cw.status != http.StatusNotFound || !cw.fromMux() {
		cw.flushTo(w)
		return
	}
	// Missing static assets keep the file server's response.
	if strings.HasPrefix(r.URL.Path, "/static/") {
		cw.flushTo(w)
		return
	}
	h.pages.fail(w, r, apperrors.NotFound("page not found"))
}

// captureWriter buffers headers, status and body so we can decide post-dispatch.
type captureWriter struct {
	rw     http.ResponseWriter
	header http.Header
	status int
	buf    bytes.Buffer
}

func newCaptureWriter(w http.ResponseWriter) *captureWriter {
	return &captureWriter{rw: w, header: make(http.Header), status: http.StatusOK}
}

func (c *captureWriter) Header() http.Header         { return c.header }
func (c *captureWriter) WriteHeader(code int)        { c.status = code }
func (c *captureWriter) Write(b []byte) (int, error) { return c.buf.Write(b) }

// fromMux reports whether the 404 is the mux's own plain-text reply rather
// than one written by a handler.
func (c *captureWriter) fromMux() bool {
	return strings.HasPrefix(c.header.Get("Content-Type"), "text/plain")
}

func (c *captureWriter) flushTo(w http.ResponseWriter) {
	for k, vs := range c.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(c.status)
	_, _ = w.Write(c.buf.Bytes())
}
