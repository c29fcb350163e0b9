package httpx

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"

	corefuncs "github.com/jemaat/portal/internal/http/templates/core"
)

//nolint:gochecknoglobals // template globs, fixed at build time
var templatePatterns = []string{"*.tmpl", "pages/*.tmpl", "partials/*.tmpl"}

// TemplateRenderer renders HTML templates for browser responses.
type TemplateRenderer struct {
	fsys    fs.FS
	devMode bool
	logger  *slog.Logger

	mu sync.RWMutex
	t  *template.Template
}

// TemplateRendererConfig holds configuration for creating a TemplateRenderer.
type TemplateRendererConfig struct {
	TemplateFS fs.FS // required
	// DevMode re-parses templates on every render so edits show up immediately.
	DevMode bool
	Logger  *slog.Logger
}

// NewTemplateRenderer parses the template set once; a broken template fails startup.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	if cfg.TemplateFS == nil {
		return nil, errors.New("TemplateFS is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &TemplateRenderer{fsys: cfg.TemplateFS, devMode: cfg.DevMode, logger: logger}
	t, err := r.parse()
	if err != nil {
		logger.Error("template parsing failed", slog.Any("error", err), slog.String("phase", "initialization"))
		return nil, err
	}
	r.t = t
	return r, nil
}

func (r *TemplateRenderer) parse() (*template.Template, error) {
	var t *template.Template
	funcs := corefuncs.Funcs(corefuncs.Deps{Template: &t, ContentTemplateFor: ContentTemplateFor})
	parsed, err := template.New("root").Funcs(funcs).ParseFS(r.fsys, templatePatterns...)
	if err != nil {
		return nil, err
	}
	t = parsed
	return t, nil
}

func (r *TemplateRenderer) templates() *template.Template {
	if r.devMode {
		if t, err := r.parse(); err == nil {
			r.mu.Lock()
			r.t = t
			r.mu.Unlock()
		} else {
			r.logger.Warn("template reload failed, using previous set", slog.Any("error", err))
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.t
}

// RenderPage renders the full layout, or only the content area for htmx
// fragment requests.
func (r *TemplateRenderer) RenderPage(w http.ResponseWriter, req *http.Request, data any) error {
	return r.RenderPageStatus(w, req, http.StatusOK, data)
}

// RenderPageStatus is RenderPage with an explicit status code.
func (r *TemplateRenderer) RenderPageStatus(w http.ResponseWriter, req *http.Request, status int, data any) error {
	name := "layout"
	if WantsPartial(req) {
		name = "content"
	}
	return r.render(w, name, status, data)
}

// RenderError renders the standalone error page with status.
func (r *TemplateRenderer) RenderError(w http.ResponseWriter, status int, data any) error {
	return r.render(w, "error-layout", status, data)
}

// Render executes the named template with status 200.
func (r *TemplateRenderer) Render(w http.ResponseWriter, name string, data any) error {
	return r.render(w, name, http.StatusOK, data)
}

// render executes into a buffer and writes only on success, so a failing
// template never leaves a half-written page.
func (r *TemplateRenderer) render(w http.ResponseWriter, name string, status int, data any) error {
	var buf bytes.Buffer
	if err := r.templates().ExecuteTemplate(&buf, name, data); err != nil {
		r.logger.Error("template execution failed", slog.String("template", name), slog.Any("error", err))
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		r.logger.Debug("write rendered template failed", slog.String("template", name), slog.Any("error", err))
		return err
	}
	return nil
}
