package config

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the public URL of the portal (e.g., "https://gereja.example.org").
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// CookieDomain is the domain for client cookies.
	// Leave empty to use the request host. Public suffixes are rejected.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// ReadHeaderTimeout bounds how long a client may take to send headers.
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	h.CookieDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h.CookieDomain), "."))
	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = 10 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (h *HTTPConfig) SecureCookies() bool {
	return strings.HasPrefix(strings.ToLower(h.BaseURL), "https://")
}

// Validate rejects a cookie domain that browsers would refuse, such as "com" or "co.id".
func (h *HTTPConfig) Validate() error {
	if h.CookieDomain == "" {
		return nil
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(h.CookieDomain); err != nil {
		return fmt.Errorf("APP_COOKIE_DOMAIN %q is a public suffix: %w", h.CookieDomain, err)
	}
	return nil
}
