package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/jemaat/portal/config"
)

//nolint:gochecknoglobals // shared by InitLogger and ApplyLogLevel
var logLevel = new(slog.LevelVar)

// InitLogger initializes the structured logger at info level. ApplyLogLevel
// adjusts it once configuration is loaded.
func InitLogger() *slog.Logger {
	logLevel.Set(slog.LevelInfo)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// ApplyLogLevel switches the logger created by InitLogger to the configured level.
func ApplyLogLevel(cfg config.ObservabilityLoggingConfig) {
	logLevel.Set(cfg.SlogLevel())
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig validates that at least one service is enabled and
// that the cookie domain is usable.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	if len(services) == 0 {
		return errors.New("no services enabled")
	}
	if err := cfg.HTTP.Validate(); err != nil {
		return err
	}
	if cfg.Auth.Mode == config.AuthModeMock && !cfg.IsDev {
		return errors.New("AUTH_MODE=mock is only allowed in development (set DEV=true)")
	}
	return nil
}

// GetEnabledServices returns the enabled service names, sorted.
func GetEnabledServices(cfg *config.AppConfig) []string {
	if cfg == nil {
		return []string{}
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		// Validation reports the error.
		return []string{}
	}

	enabled := make([]string, 0, len(services))
	for svc := range services {
		enabled = append(enabled, string(svc))
	}
	sort.Strings(enabled)
	return enabled
}
