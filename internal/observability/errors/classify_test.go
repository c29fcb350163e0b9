package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"testing"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
	"github.com/jemaat/portal/internal/ports"
	"github.com/stretchr/testify/assert"
)

type customErr struct{}

func (customErr) Error() string { return "custom" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"expired", fmt.Errorf("whoami: %w", domainauth.ErrSessionExpired), "session_expired"},
		{"in progress", domainauth.ErrLoginInProgress, "login_in_progress"},
		{"no credential", ports.ErrNoCredential, "no_credential"},
		{"invalid credentials", &domainauth.InvalidCredentialsError{Message: "x"}, "invalid_credentials"},
		{"unavailable timeout", &domainauth.UnavailableError{Op: "login", Cause: context.DeadlineExceeded}, "timeout"},
		{"unavailable plain", &domainauth.UnavailableError{Op: "login", Cause: goerrors.New("status 502")}, "unavailable"},
		{"custom type", fmt.Errorf("wrap: %w", customErr{}), "errors_customerr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
