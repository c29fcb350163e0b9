package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode selects which backend the portal authenticates against.
type AuthMode string

const (
	// AuthModeRemote uses the church REST API.
	AuthModeRemote AuthMode = "remote"
	// AuthModeMock uses an in-process backend fed from a users file (development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "remote", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: remote, mock)", v)
	}
}

// DevAuthConfig configures the mock backend used when AUTH_MODE=mock.
type DevAuthConfig struct {
	// UsersFile is a YAML file of users with bcrypt password hashes.
	// When empty a single built-in super admin is used.
	UsersFile string `env:"USERS_FILE"`
}

// AuthConfig groups session and login configuration.
type AuthConfig struct {
	Mode AuthMode `env:"AUTH_MODE" envDefault:"remote"`

	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// ClientCookieName names the cookie that identifies a browser client.
	ClientCookieName string `env:"SESSION_CLIENT_COOKIE" envDefault:"portal_client"`

	// ClientCookieMaxAge bounds how long a browser keeps its client id.
	ClientCookieMaxAge time.Duration `env:"SESSION_CLIENT_MAX_AGE" envDefault:"720h"`

	// CredentialPrefix prefixes credential keys in Redis.
	CredentialPrefix string `env:"SESSION_CREDENTIAL_PREFIX" envDefault:"portal:client:"`

	// CredentialKey encrypts tokens at rest in Redis: 64 hex chars or any passphrase.
	// Empty stores them with the noop encoding.
	CredentialKey string `env:"SESSION_CREDENTIAL_KEY"`

	// CredentialRetiredKeys still open tokens sealed before a key rotation.
	CredentialRetiredKeys []string `env:"SESSION_CREDENTIAL_RETIRED_KEYS" envSeparator:","`

	// CredentialTTL caps how long a persisted token is kept when the token carries no expiry.
	CredentialTTL time.Duration `env:"SESSION_CREDENTIAL_TTL" envDefault:"24h"`

	// HydrateWait is how long a request waits for startup hydration before rendering the loading page.
	HydrateWait time.Duration `env:"SESSION_HYDRATE_WAIT" envDefault:"2s"`

	// IdleTimeout drops in-memory client sessions not seen for this long.
	IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`

	// LoginRatePerMinute and LoginBurst throttle login attempts per client.
	LoginRatePerMinute int `env:"LOGIN_RATE_PER_MINUTE" envDefault:"10"`
	LoginBurst         int `env:"LOGIN_BURST"           envDefault:"5"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.Mode == "" {
		a.Mode = AuthModeRemote
	}
	a.ClientCookieName = strings.TrimSpace(a.ClientCookieName)
	if a.ClientCookieName == "" {
		a.ClientCookieName = "portal_client"
	}
	if a.ClientCookieMaxAge < time.Hour {
		a.ClientCookieMaxAge = time.Hour
	}
	if a.CredentialTTL < time.Minute {
		a.CredentialTTL = time.Minute
	}
	if a.HydrateWait < 0 {
		a.HydrateWait = 0
	}
	if a.HydrateWait > 30*time.Second {
		a.HydrateWait = 30 * time.Second
	}
	if a.IdleTimeout < time.Minute {
		a.IdleTimeout = time.Minute
	}
	if a.LoginRatePerMinute < 1 {
		a.LoginRatePerMinute = 1
	}
	if a.LoginBurst < 1 {
		a.LoginBurst = 1
	}
}
