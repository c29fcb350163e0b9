package auth

import "errors"

var (
	// ErrEmptyRoleSet is returned when a screen is declared without any allowed role.
	ErrEmptyRoleSet = errors.New("screen requires at least one role")
	// ErrInvalidRole is returned for role values outside the canonical set.
	ErrInvalidRole = errors.New("invalid role")
	// ErrSessionExpired reports that the backend rejected a previously accepted credential.
	ErrSessionExpired = errors.New("session expired")
	// ErrLoginInProgress is returned when a client starts a second login before the first finished.
	ErrLoginInProgress = errors.New("login already in progress")
)

// InvalidCredentialsError is a login rejection. Message is the backend's text and
// is shown to the user as is.
type InvalidCredentialsError struct {
	Message string
}

func (e *InvalidCredentialsError) Error() string {
	if e.Message == "" {
		return "invalid credentials"
	}
	return e.Message
}

// UnavailableError wraps network, timeout and server failures. Callers may retry.
type UnavailableError struct {
	Op    string
	Cause error
}

func (e *UnavailableError) Error() string {
	if e.Cause == nil {
		return e.Op + ": backend unavailable"
	}
	return e.Op + ": backend unavailable: " + e.Cause.Error()
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// IsInvalidCredentials reports whether err is an InvalidCredentialsError.
func IsInvalidCredentials(err error) bool {
	var target *InvalidCredentialsError
	return errors.As(err, &target)
}

// IsUnavailable reports whether err is an UnavailableError.
func IsUnavailable(err error) bool {
	var target *UnavailableError
	return errors.As(err, &target)
}
