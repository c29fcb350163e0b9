package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
	apperrors "github.com/jemaat/portal/internal/errors"
)

const maxJSONBody = 1 << 20

// DecodeJSON decodes JSON from the request body into dst.
// Returns false after writing a 400 response when decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	// Client disconnects can't be recovered from here.
	_, _ = buf.WriteTo(w)
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	body := map[string]string{"error": p.ErrCode, "message": p.Err.Error()}
	if field := apperrors.GetField(p.Err); field != "" {
		body["field"] = field
	}
	WriteJSON(w, p.Code, body)
}

// WriteAppError maps err onto a status and writes it as JSON. Server-side
// failures are reported without their details.
func WriteAppError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	switch {
	case status >= http.StatusInternalServerError:
		err = errors.New(http.StatusText(status))
	case errors.Is(err, domainauth.ErrSessionExpired):
		err = apperrors.Unauthorized(msgSessionExpired)
	}
	WriteError(w, ErrorParams{Code: status, ErrCode: code, Err: err})
}

// errorStatus classifies err into an HTTP status and a stable error code.
func errorStatus(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, domainauth.ErrSessionExpired):
		return http.StatusUnauthorized, "session_expired"
	case errors.Is(err, domainauth.ErrLoginInProgress):
		return http.StatusConflict, "login_in_progress"
	case domainauth.IsInvalidCredentials(err):
		return http.StatusUnauthorized, string(apperrors.ErrCodeInvalidCredentials)
	case domainauth.IsUnavailable(err):
		return http.StatusServiceUnavailable, string(apperrors.ErrCodeUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, string(apperrors.ErrCodeTimeout)
	}

	code := apperrors.GetCode(err)
	switch code {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound, string(code)
	case apperrors.ErrCodeConflict:
		return http.StatusConflict, string(code)
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest, string(code)
	case apperrors.ErrCodeInvalidCredentials, apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized, string(code)
	case apperrors.ErrCodeUnavailable, apperrors.ErrCodeCanceled:
		return http.StatusServiceUnavailable, string(code)
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout, string(code)
	case apperrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests, string(code)
	default:
		return http.StatusInternalServerError, string(apperrors.ErrCodeInternal)
	}
}
