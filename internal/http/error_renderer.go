package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
	apperrors "github.com/jemaat/portal/internal/errors"
)

// pageResponder is embedded by handler groups that render pages.
type pageResponder struct {
	T      *TemplateRenderer
	Logger *slog.Logger
}

func (p pageResponder) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// render writes a page, falling back to a plain 500 when the template fails.
func (p pageResponder) render(w http.ResponseWriter, r *http.Request, status int, data map[string]any) {
	if p.T == nil {
		http.Error(w, "template renderer not configured", http.StatusInternalServerError)
		return
	}
	if err := p.T.RenderPageStatus(w, r, status, data); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// fail answers a request whose operation returned err. An expired session
// sends browsers back to the login page with the current page recorded.
func (p pageResponder) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := errorStatus(err)
	switch {
	case isCanceled(err):
		p.logger().DebugContext(r.Context(), "request canceled", "path", r.URL.Path)
	case status >= http.StatusInternalServerError:
		p.logger().ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}

	if !IsBrowserRequest(r) {
		WriteAppError(w, err)
		return
	}
	if isSessionExpired(err) {
		redirectTo(w, r, domainauth.LoginRedirect(requestedPath(r)))
		return
	}

	msg := publicMessage(err)
	if IsHTMX(r) {
		triggerToast(w, msg, "error")
		w.WriteHeader(status)
		return
	}
	if p.T == nil {
		http.Error(w, msg, status)
		return
	}
	data := NewTemplateData(r, PageMeta{Title: http.StatusText(status)}).
		With("StatusCode", status).
		WithError(msg).
		Build()
	if rerr := p.T.RenderError(w, status, data); rerr != nil {
		http.Error(w, msg, status)
	}
}

// publicMessage turns err into text safe to show to users. Messages written
// by the church API for validation and conflicts are shown as is.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Permintaan melebihi batas waktu. Coba lagi."
	case isCanceled(err):
		return "Permintaan dibatalkan."
	case isSessionExpired(err):
		return msgSessionExpired
	case errors.Is(err, domainauth.ErrLoginInProgress):
		return "Proses masuk sebelumnya masih berjalan. Tunggu sebentar."
	case domainauth.IsInvalidCredentials(err):
		return err.Error()
	case domainauth.IsUnavailable(err), apperrors.IsUnavailable(err), apperrors.IsTimeout(err):
		return "Layanan gereja sedang tidak dapat dihubungi. Coba lagi beberapa saat."
	case apperrors.IsNotFound(err):
		return "Data tidak ditemukan."
	case apperrors.IsValidation(err):
		return apperrors.Message(err, errMsgFixBelow)
	case apperrors.IsConflict(err):
		return apperrors.Message(err, "Data bertabrakan dengan perubahan lain.")
	case apperrors.GetCode(err) == apperrors.ErrCodeRateLimited:
		return apperrors.Message(err, "Terlalu banyak percobaan. Coba lagi nanti.")
	default:
		return "Terjadi kesalahan. Coba lagi."
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || apperrors.IsCanceled(err)
}

// isSessionExpired covers the backend rejecting the token and handlers
// refusing a request that has no session.
func isSessionExpired(err error) bool {
	return errors.Is(err, domainauth.ErrSessionExpired) || apperrors.IsUnauthorized(err)
}

// fieldErrorsFrom maps a field-scoped validation error onto the form.
func fieldErrorsFrom(err error) map[string]string {
	if !apperrors.IsValidation(err) {
		return nil
	}
	if f := apperrors.GetField(err); f != "" {
		return map[string]string{f: apperrors.Message(err, errMsgFixBelow)}
	}
	return nil
}
