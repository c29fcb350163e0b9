//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxAccessEventDetailLen = 1024
	defaultAccessEventLimit = 50
	maxAccessEventLimit     = 500
)

// AccessEventKind classifies an entry of the access audit trail.
type AccessEventKind string

const (
	AccessLoginSucceeded AccessEventKind = "login_succeeded"
	AccessLoginFailed    AccessEventKind = "login_failed"
	AccessLogout         AccessEventKind = "logout"
	AccessSessionExpired AccessEventKind = "session_expired"
	AccessHydrateFailed  AccessEventKind = "hydrate_failed"
)

// Valid reports whether the kind is known.
func (k AccessEventKind) Valid() bool {
	switch k {
	case AccessLoginSucceeded, AccessLoginFailed, AccessLogout, AccessSessionExpired, AccessHydrateFailed:
		return true
	default:
		return false
	}
}

// ParseAccessEventKind trims and lowercases value and reports whether it is a known kind.
func ParseAccessEventKind(value string) (AccessEventKind, bool) {
	k := AccessEventKind(strings.ToLower(strings.TrimSpace(value)))
	if k.Valid() {
		return k, true
	}
	return "", false
}

// AccessEvent is one audit record. Credentials are never stored.
type AccessEvent struct {
	ID        string          `json:"id"         db:"id"`
	ClientID  string          `json:"client_id"  db:"client_id"`
	UserID    string          `json:"user_id"    db:"user_id"`
	Email     string          `json:"email"      db:"email"`
	Role      string          `json:"role"       db:"role"`
	Kind      AccessEventKind `json:"kind"       db:"kind"`
	Detail    string          `json:"detail"     db:"detail"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Normalize trims fields and caps Detail so it fits the column.
func (e *AccessEvent) Normalize() {
	e.Email = strings.TrimSpace(e.Email)
	e.Detail = strings.TrimSpace(e.Detail)
	if len(e.Detail) > maxAccessEventDetailLen {
		cut := maxAccessEventDetailLen
		for cut > 0 && !utf8.RuneStart(e.Detail[cut]) {
			cut--
		}
		e.Detail = e.Detail[:cut]
	}
}

// AccessEventListOptions controls listing of audit events, newest first.
type AccessEventListOptions struct {
	Limit    int
	Offset   int
	Kind     *AccessEventKind
	ClientID *string
	Since    *time.Time
}

// EffectiveLimit clamps Limit into the supported range.
func (o AccessEventListOptions) EffectiveLimit() int {
	switch {
	case o.Limit <= 0:
		return defaultAccessEventLimit
	case o.Limit > maxAccessEventLimit:
		return maxAccessEventLimit
	default:
		return o.Limit
	}
}
