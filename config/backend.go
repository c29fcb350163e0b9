package config

import (
	"strings"
	"time"
)

// BackendConfig configures the church REST API client.
// All fields are read with the BACKEND_ prefix.
type BackendConfig struct {
	BaseURL    string `env:"BASE_URL"    envDefault:"http://localhost:8000/api"`
	LoginPath  string `env:"LOGIN_PATH"  envDefault:"/login"`
	MePath     string `env:"ME_PATH"     envDefault:"/me"`
	LogoutPath string `env:"LOGOUT_PATH" envDefault:"/logout"`
	ExportPath string `env:"EXPORT_PATH" envDefault:"/export"`

	// Timeout bounds every round trip to the API.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`

	// JMESPath expressions used to pull fields out of login and profile payloads.
	// The defaults accept both flat and {data: ...} wrapped replies.
	TokenExpr   string `env:"TOKEN_EXPR"   envDefault:"token || data.token || access_token || data.access_token"`
	ProfileExpr string `env:"PROFILE_EXPR" envDefault:"user || data.user || data || @"`
	RoleExpr    string `env:"ROLE_EXPR"    envDefault:"role || user.role || data.role || data.user.role"`
	MessageExpr string `env:"MESSAGE_EXPR" envDefault:"message || error || data.message"`
}

// Sanitize trims URLs and enforces a sane timeout.
func (b *BackendConfig) Sanitize() {
	b.BaseURL = strings.TrimRight(strings.TrimSpace(b.BaseURL), "/")
	for _, p := range []*string{&b.LoginPath, &b.MePath, &b.LogoutPath, &b.ExportPath} {
		*p = strings.TrimSpace(*p)
		if *p != "" && !strings.HasPrefix(*p, "/") {
			*p = "/" + *p
		}
	}
	if b.Timeout <= 0 {
		b.Timeout = 10 * time.Second
	}
	if b.Timeout > 2*time.Minute {
		b.Timeout = 2 * time.Minute
	}
}
