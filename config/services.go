package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeReaper runs periodic cleanup of idle sessions and old audit events.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeReaper}
}

// ParseServices reads a comma-delimited list such as "http,reaper". Blank
// entries are ignored; an unknown name or an empty result is an error.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	if strings.TrimSpace(servicesStr) == "" {
		return map[ServiceMode]bool{}, errors.New("at least one service must be specified")
	}

	enabled := make(map[ServiceMode]bool)
	for _, part := range strings.Split(servicesStr, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		mode := ServiceMode(name)
		if !slices.Contains(ValidServiceModes(), mode) {
			return nil, fmt.Errorf("invalid service name: %q (valid options: %s)", name, validModeList())
		}
		enabled[mode] = true
	}
	if len(enabled) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}
	return enabled, nil
}

func validModeList() string {
	modes := ValidServiceModes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// ReaperConfig contains cleanup service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// AuditRetention is how long access events are kept.
	AuditRetention time.Duration `env:"REAPER_AUDIT_RETENTION" envDefault:"2160h"` // 90 days
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < 10*time.Second {
		r.Interval = 10 * time.Second
	}
	if r.AuditRetention < 24*time.Hour {
		r.AuditRetention = 24 * time.Hour
	}
}
