package httpx

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

const (
	// DefaultCSRFCookieName is the cookie (and form field) carrying the CSRF token.
	DefaultCSRFCookieName = "csrf_token"
	// DefaultCSRFHeaderName is the header htmx sends the token in (canonical form).
	DefaultCSRFHeaderName = "X-Csrf-Token"
	// DefaultCSRFTokenLength is the token length in bytes before encoding.
	DefaultCSRFTokenLength = 32

	csrfCookieMaxAge = 12 * 60 * 60
)

// CSRFConfig holds configuration for CSRF protection middleware.
type CSRFConfig struct {
	CookieName    string
	HeaderName    string
	FormFieldName string
	CookieDomain  string
	// Secure forces the Secure flag; it is also set for requests arriving over TLS.
	Secure      bool
	TokenLength int
}

func (c CSRFConfig) withDefaults() CSRFConfig {
	if c.CookieName == "" {
		c.CookieName = DefaultCSRFCookieName
	}
	if c.HeaderName == "" {
		c.HeaderName = DefaultCSRFHeaderName
	}
	if c.FormFieldName == "" {
		c.FormFieldName = DefaultCSRFCookieName
	}
	if c.TokenLength <= 0 {
		c.TokenLength = DefaultCSRFTokenLength
	}
	return c
}

// CSRFProtection implements the double-submit cookie pattern. Every page
// response carries a token cookie (static assets and health checks excepted); state-changing requests must echo it in the header or
// the form field. JSON bodies are exempt: browsers cannot send them cross-site
// without a CORS preflight, which the portal never grants.
func CSRFProtection(cfg CSRFConfig) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipClientSession(r.URL.Path) && !requiresCSRFValidation(r) {
				next.ServeHTTP(w, r)
				return
			}

			token := csrfCookieValue(r, cfg.CookieName)
			if token == "" {
				fresh, err := generateCSRFToken(cfg.TokenLength)
				if err != nil {
					http.Error(w, "unable to generate CSRF token", http.StatusInternalServerError)
					return
				}
				token = fresh
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    token,
					Path:     "/",
					Domain:   cfg.CookieDomain,
					HttpOnly: false, // htmx reads it to fill the header
					Secure:   cfg.Secure || r.TLS != nil || isForwardedHTTPS(r),
					SameSite: http.SameSiteStrictMode,
					MaxAge:   csrfCookieMaxAge,
				})
			}

			r = r.WithContext(context.WithValue(r.Context(), csrfTokenKey{}, token))

			if requiresCSRFValidation(r) && !validCSRFToken(r, token, cfg) {
				if IsBrowserRequest(r) {
					http.Error(w, "Sesi formulir kedaluwarsa. Muat ulang halaman dan coba lagi.", http.StatusForbidden)
					return
				}
				WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "csrf_failed", Err: errCSRF})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

var errCSRF = fmt.Errorf("CSRF token validation failed")

func requiresCSRFValidation(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt != "application/json"
}

func csrfCookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// generateCSRFToken fails closed: no predictable fallback token.
func generateCSRFToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("csrf token generation failed: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// isForwardedHTTPS checks X-Forwarded-Proto, which may hold a comma-separated list.
func isForwardedHTTPS(r *http.Request) bool {
	for _, proto := range strings.Split(r.Header.Get("X-Forwarded-Proto"), ",") {
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			return true
		}
	}
	return false
}

func validCSRFToken(r *http.Request, cookieToken string, cfg CSRFConfig) bool {
	if cookieToken == "" {
		return false
	}
	if h := r.Header.Get(cfg.HeaderName); h != "" {
		return subtle.ConstantTimeCompare([]byte(h), []byte(cookieToken)) == 1
	}

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "application/x-www-form-urlencoded" && mt != "multipart/form-data" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	v := r.PostFormValue(cfg.FormFieldName)
	return v != "" && subtle.ConstantTimeCompare([]byte(v), []byte(cookieToken)) == 1
}

type csrfTokenKey struct{}

// GetCSRFToken returns the CSRF token for templates.
func GetCSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfTokenKey{}).(string)
	return token
}
