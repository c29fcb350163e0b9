package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: session, login and dev backend configuration
//   - backend.go: church API client configuration
//   - database.go: Postgres, Redis and cache configuration
//   - http.go: HTTP server configuration
//   - services.go: service mode and reaper configuration
type AppConfig struct {
	// IsDev controls development mode behavior (template reloading, insecure cookies).
	// Set DEV=true or APP_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	Auth    AuthConfig
	Backend BackendConfig `envPrefix:"BACKEND_"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Cache    CacheConfig

	HTTP HTTPConfig

	// Services is a comma-delimited list of enabled services (http, reaper).
	// Idle client sessions are only swept when reaper runs next to http.
	Services string `env:"SERVICES" envDefault:"http,reaper"`

	Reaper ReaperConfig

	Observability ObservabilityConfig
}

// Sanitize clamps every section to safe values. LoadConfig calls it after parsing.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
	c.Backend.Sanitize()
	c.Cache.Sanitize()
	c.HTTP.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode lets APP_ENV=development (or dev) stand in for DEV=true.
func (c *AppConfig) detectDevMode() {
	if c.IsDev {
		return
	}
	switch strings.ToLower(os.Getenv("APP_ENV")) {
	case "development", "dev":
		c.IsDev = true
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled reports whether SERVICES includes http.
func (c *AppConfig) IsHTTPServerEnabled() bool { return c.serviceEnabled(ServiceModeHTTP) }

// IsReaperEnabled reports whether SERVICES includes reaper.
func (c *AppConfig) IsReaperEnabled() bool { return c.serviceEnabled(ServiceModeReaper) }

// serviceEnabled treats an unparsable SERVICES value as nothing enabled.
func (c *AppConfig) serviceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	return err == nil && services[mode]
}
