package errors

import (
	"context"
	goerrors "errors"
	"net"
	"reflect"
	"strings"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
	"github.com/jemaat/portal/internal/ports"
)

// Classify returns a normalized error class suitable for tagging metrics/logs.
// Known portal errors get stable names; anything else is named after its innermost concrete type.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case goerrors.Is(err, domainauth.ErrSessionExpired):
		return "session_expired"
	case goerrors.Is(err, domainauth.ErrLoginInProgress):
		return "login_in_progress"
	case goerrors.Is(err, ports.ErrNoCredential):
		return "no_credential"
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	case domainauth.IsInvalidCredentials(err):
		return "invalid_credentials"
	}

	var netErr net.Error
	if goerrors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}

	if domainauth.IsUnavailable(err) {
		return "unavailable"
	}

	return typeName(err)
}

func typeName(err error) string {
	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
