package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
	authmocks "github.com/jemaat/portal/internal/mocks/auth"
	"github.com/jemaat/portal/internal/ports"
)

func loginForm(email, password, redirect string) url.Values {
	v := url.Values{"email": {email}, "password": {password}}
	if redirect != "" {
		v.Set("redirect_uri", redirect)
	}
	return v
}

func TestLoginPage_Anonymous(t *testing.T) {
	f := newPortalFixture(t)

	rec := f.serve(browserGet("/login?redirect_uri=%2Fadmin%2Fwarta"), f.anonymousClient())

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="redirect_uri" value="/admin/warta"`)
	assert.Contains(t, body, `name="csrf_token"`)
}

func TestLoginPage_DropsUnsafeRedirect(t *testing.T) {
	f := newPortalFixture(t)

	rec := f.serve(browserGet("/login?redirect_uri=%2F%2Fevil.example"), f.anonymousClient())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "evil.example")
}

func TestLoginPage_SignedInGoesToLanding(t *testing.T) {
	f := newPortalFixture(t)

	rec := f.serve(browserGet("/login"), f.signedInClient("super@example.com"))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/super-admin/dashboard", rec.Header().Get("Location"))
}

func TestLogin_RedirectsToLandingByRole(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{email: "super@example.com", want: "/super-admin/dashboard"},
		{email: "admin@example.com", want: "/admin/dashboard"},
		{email: "user@example.com", want: "/"},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			f := newPortalFixture(t)
			client := f.anonymousClient()

			rec := f.serve(formPost("/login", loginForm(tt.email, "secret", "")), client)

			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Location"))
			rotated := findCookie(rec.Result(), testClientCookie)
			require.NotNil(t, rotated, "client id rotated")
			token, ok := f.creds.Token(rotated.Value)
			require.True(t, ok, "credential persisted")
			assert.Equal(t, authmocks.TokenFor(tt.email), token)
		})
	}
}

func TestLogin_HonoursRedirectWhenRoleAllows(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		redirect string
		want     string
	}{
		{name: "allowed screen", email: "admin@example.com", redirect: "/admin/warta?page=2", want: "/admin/warta?page=2"},
		{name: "screen of another role", email: "admin@example.com", redirect: "/super-admin/finance", want: "/admin/dashboard"},
		{name: "public page", email: "user@example.com", redirect: "/warta", want: "/warta"},
		{name: "external url", email: "super@example.com", redirect: "https://evil.example/", want: "/super-admin/dashboard"},
		{name: "login page", email: "admin@example.com", redirect: "/login", want: "/admin/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPortalFixture(t)
			rec := f.serve(formPost("/login", loginForm(tt.email, "secret", tt.redirect)), f.anonymousClient())

			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Location"))
		})
	}
}

func TestLogin_RotatesPlantedClientID(t *testing.T) {
	f := newPortalFixture(t)
	planted := &http.Cookie{Name: testClientCookie, Value: "11111111-2222-3333-4444-555555555555"}

	rec := f.serve(formPost("/login", loginForm("admin@example.com", "secret", "")), planted)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rotated := findCookie(rec.Result(), testClientCookie)
	require.NotNil(t, rotated)
	assert.NotEqual(t, planted.Value, rotated.Value)
	assert.True(t, rotated.HttpOnly)
	assert.Equal(t, "/", rotated.Path)
	_, ok := f.creds.Token(planted.Value)
	assert.False(t, ok, "nothing persisted under the planted id")

	rec = f.serve(browserGet("/admin/dashboard"), planted)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?redirect_uri=%2Fadmin%2Fdashboard", rec.Header().Get("Location"))

	rec = f.serve(jsonGet("/auth/status"), planted)
	assert.JSONEq(t, `{"status":"anonymous"}`, rec.Body.String())

	rec = f.serve(browserGet("/admin/dashboard"), &http.Cookie{Name: testClientCookie, Value: rotated.Value})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_JSONRotatesClientID(t *testing.T) {
	f := newPortalFixture(t)
	client := f.anonymousClient()

	rec := f.serve(jsonRequest(http.MethodPost, "/login", `{"email":"super@example.com","password":"secret"}`), client)
	require.Equal(t, http.StatusOK, rec.Code)

	rotated := findCookie(rec.Result(), testClientCookie)
	require.NotNil(t, rotated)
	assert.NotEqual(t, client.Value, rotated.Value)

	rec = f.serve(jsonGet("/auth/status"), client)
	assert.JSONEq(t, `{"status":"anonymous"}`, rec.Body.String())
	rec = f.serve(jsonGet("/auth/status"), &http.Cookie{Name: testClientCookie, Value: rotated.Value})
	assert.Contains(t, rec.Body.String(), `"status":"authenticated"`)
}

func TestLogin_InvalidCredentialsShowsBackendMessage(t *testing.T) {
	f := newPortalFixture(t)
	client := f.anonymousClient()

	rec := f.serve(formPost("/login", loginForm("admin@example.com", "wrong", "/admin/warta")), client)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Email atau password salah")
	assert.Contains(t, body, `value="admin@example.com"`, "email is kept")
	assert.Contains(t, body, `name="redirect_uri" value="/admin/warta"`)
	_, ok := f.creds.Token(client.Value)
	assert.False(t, ok)
}

func TestLogin_BackendUnavailable(t *testing.T) {
	f := newPortalFixture(t)
	f.backend.LoginFunc = func(context.Context, string, string) (ports.LoginResult, error) {
		return ports.LoginResult{}, &domainauth.UnavailableError{Op: "login", Cause: errors.New("dial tcp: refused")}
	}

	rec := f.serve(formPost("/login", loginForm("admin@example.com", "secret", "")), f.anonymousClient())

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "tidak dapat dihubungi")
	assert.NotContains(t, rec.Body.String(), "refused")
}

func TestLogin_MissingFields(t *testing.T) {
	f := newPortalFixture(t)

	rec := f.serve(formPost("/login", loginForm("", "", "")), f.anonymousClient())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "wajib diisi")
	login, _, _, _ := f.backend.Calls()
	assert.Zero(t, login)
}

func TestLogin_RequiresCSRFForForms(t *testing.T) {
	f := newPortalFixture(t)
	req := formPost("/login", loginForm("admin@example.com", "secret", ""))
	req.Header.Set("X-Csrf-Token", "something-else")

	rec := f.serve(req, f.anonymousClient())

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogin_JSON(t *testing.T) {
	f := newPortalFixture(t)

	rec := f.serve(jsonRequest(http.MethodPost, "/login",
		`{"email":"admin@example.com","password":"secret","redirect_uri":"/admin/schedules"}`), f.anonymousClient())

	require.Equal(t, http.StatusOK, rec.Code)
	var body StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "authenticated", body.Status)
	assert.Equal(t, "/admin/schedules", body.Redirect)
	assert.Equal(t, "/admin/dashboard", body.Landing)
	require.NotNil(t, body.User)
	assert.Equal(t, "admin", body.User.Role)
	assert.NotContains(t, rec.Body.String(), authmocks.TokenFor("admin@example.com"), "token never leaves the server")
}

func TestLogin_JSONInvalidCredentials(t *testing.T) {
	f := newPortalFixture(t)

	rec := f.serve(jsonRequest(http.MethodPost, "/login", `{"email":"admin@example.com","password":"nope"}`), f.anonymousClient())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid_credentials","message":"Email atau password salah"}`, rec.Body.String())
}

func TestLogin_RateLimitedPerClient(t *testing.T) {
	f := newPortalFixture(t)
	f.limiter.burst = 1
	f.limiter.limit = 0
	client := f.anonymousClient()

	rec := f.serve(formPost("/login", loginForm("admin@example.com", "wrong", "")), client)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.serve(formPost("/login", loginForm("admin@example.com", "secret", "")), client)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, loginRetryAfter, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Terlalu banyak percobaan")

	rec = f.serve(formPost("/login", loginForm("admin@example.com", "secret", "")), f.anonymousClient())
	assert.Equal(t, http.StatusSeeOther, rec.Code, "other clients are unaffected")
}

func TestLogout(t *testing.T) {
	f := newPortalFixture(t)
	client := f.signedInClient("admin@example.com")

	rec := f.serve(formPost("/logout", nil), client)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, domainauth.LoginPath, rec.Header().Get("Location"))
	_, ok := f.creds.Token(client.Value)
	assert.False(t, ok)

	rec = f.serve(jsonGet("/auth/status"), client)
	assert.JSONEq(t, `{"status":"anonymous"}`, rec.Body.String())

	rec = f.serve(formPost("/logout", nil), client)
	assert.Equal(t, http.StatusSeeOther, rec.Code, "second logout is harmless")
}

func TestAuthStatus(t *testing.T) {
	f := newPortalFixture(t)

	rec := f.serve(jsonGet("/auth/status"), f.signedInClient("super@example.com"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	var body StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "authenticated", body.Status)
	assert.Equal(t, "/super-admin/dashboard", body.Landing)
	assert.Equal(t, "super_admin", body.User.Role)
	assert.Equal(t, "superadmin", body.User.RawRole)
}

func TestPostLoginTarget(t *testing.T) {
	assert.Equal(t, "/admin/dashboard", postLoginTarget("", domainauth.RoleAdmin))
	assert.Equal(t, "/admin/congregants/5/edit", postLoginTarget("/admin/congregants/5/edit", domainauth.RoleAdmin))
	assert.Equal(t, "/", postLoginTarget("/admin/congregants", domainauth.RoleRegularUser))
	assert.Equal(t, "/super-admin/audit", postLoginTarget("/super-admin/audit", domainauth.RoleSuperAdmin))
	assert.Equal(t, "/super-admin/dashboard", postLoginTarget("//evil.example", domainauth.RoleSuperAdmin))
}
