package httpx

import (
	"encoding/json"
	"mime"
	"net/http"
	"net/url"
	"strings"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
	apperrors "github.com/jemaat/portal/internal/errors"
)

const loginRetryAfter = "60"

// AuthHandlers serves sign-in, sign-out and session status.
type AuthHandlers struct {
	pageResponder
	// Sessions rotates the client id after a successful sign-in.
	Sessions SessionProvider
	Cookie   ClientSessionConfig
	Limiter  *LoginLimiter // optional
}

type loginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	RedirectURI string `json:"redirect_uri"`
}

// UserView is the public part of an identity. The bearer token is never exposed.
type UserView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	RawRole string `json:"raw_role"`
}

// StatusResponse is the body of GET /auth/status.
type StatusResponse struct {
	Status   string    `json:"status"`
	User     *UserView `json:"user,omitempty"`
	Landing  string    `json:"landing,omitempty"`
	Redirect string    `json:"redirect,omitempty"`
}

func statusResponse(state domainauth.SessionState) StatusResponse {
	resp := StatusResponse{Status: state.Status.String()}
	if state.IsAuthenticated() {
		id := state.Identity
		resp.User = &UserView{ID: id.ID, Name: id.DisplayName, Email: id.Email, Role: id.Role.String(), RawRole: id.RawRole}
		resp.Landing = domainauth.LandingPath(id.Role)
	}
	return resp
}

// LoginPage renders the sign-in form. Signed-in users are sent on to where
// they would land after signing in.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	redirect := domainauth.SafeRedirectPath(r.URL.Query().Get("redirect_uri"), "")
	if id, ok := CurrentIdentity(r.Context()); ok {
		redirectTo(w, r, postLoginTarget(redirect, id.Role))
		return
	}
	h.renderLogin(w, r, http.StatusOK, loginRequest{RedirectURI: redirect}, "")
}

// Login exchanges email and password for a session. It accepts a form post or
// a JSON body.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	api := !IsBrowserRequest(r) || isJSONBody(r)
	session, ok := ClientSessionFromContext(r.Context())
	if !ok {
		h.logger().ErrorContext(r.Context(), "login without client session")
		h.fail(w, r, apperrors.Internal("client session missing"))
		return
	}

	req, err := decodeLogin(w, r)
	if err != nil {
		h.loginFailed(w, r, api, req, err)
		return
	}
	req.RedirectURI = domainauth.SafeRedirectPath(req.RedirectURI, "")

	if h.Limiter != nil && !h.Limiter.Allow(limiterKey(r)) {
		w.Header().Set("Retry-After", loginRetryAfter)
		h.loginFailed(w, r, api, req, apperrors.RateLimited("Terlalu banyak percobaan masuk. Coba lagi dalam satu menit."))
		return
	}

	id, err := session.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.loginFailed(w, r, api, req, err)
		return
	}

	// A signed-in client never keeps the id it arrived with.
	session, err = h.Sessions.Rotate(r.Context(), session)
	if err != nil {
		h.loginFailed(w, r, api, req, err)
		return
	}
	h.Cookie.withDefaults().setCookie(w, r, session.ClientID())

	target := postLoginTarget(req.RedirectURI, id.Role)
	if api {
		resp := statusResponse(session.Current())
		resp.Redirect = target
		WriteJSON(w, http.StatusOK, resp)
		return
	}
	redirectTo(w, r, target)
}

func decodeLogin(w http.ResponseWriter, r *http.Request) (loginRequest, error) {
	var req loginRequest
	if isJSONBody(r) {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return req, apperrors.Validation("Permintaan tidak valid.")
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, apperrors.Validation("Formulir tidak dapat dibaca.")
		}
		req = loginRequest{
			Email:       r.PostForm.Get("email"),
			Password:    r.PostForm.Get("password"),
			RedirectURI: r.PostForm.Get("redirect_uri"),
		}
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return req, apperrors.Validation("Email dan kata sandi wajib diisi.")
	}
	return req, nil
}

func (h *AuthHandlers) loginFailed(w http.ResponseWriter, r *http.Request, api bool, req loginRequest, err error) {
	if api {
		WriteAppError(w, err)
		return
	}
	status, _ := errorStatus(err)
	if status >= http.StatusInternalServerError && !domainauth.IsUnavailable(err) {
		h.logger().ErrorContext(r.Context(), "login failed", "error", err)
	}
	req.Password = ""
	h.renderLogin(w, r, status, req, publicMessage(err))
}

func (h *AuthHandlers) renderLogin(w http.ResponseWriter, r *http.Request, status int, req loginRequest, msg string) {
	b := NewTemplateData(r, PageMeta{Title: "Masuk", CurrentPage: PageLogin}).
		With("Email", req.Email).
		With("RedirectURI", req.RedirectURI)
	if msg != "" {
		b.WithError(msg)
	}
	h.render(w, r, status, b.Build())
}

// Logout signs the client out. Signing out twice is harmless.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if session, ok := ClientSessionFromContext(r.Context()); ok {
		session.Logout(r.Context())
	}
	if !IsBrowserRequest(r) || isJSONBody(r) {
		WriteJSON(w, http.StatusOK, StatusResponse{Status: domainauth.StatusAnonymous.String()})
		return
	}
	redirectTo(w, r, domainauth.LoginPath)
}

// Status reports the client's session state as JSON.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, statusResponse(CurrentState(r.Context())))
}

// postLoginTarget honours the requested page when the role may view it and
// otherwise falls back to the role's landing path.
func postLoginTarget(redirect string, role domainauth.Role) string {
	landing := domainauth.LandingPath(role)
	p := domainauth.SafeRedirectPath(redirect, "")
	if p == "" {
		return landing
	}
	u, err := url.Parse(p)
	if err != nil || u.Path == domainauth.LoginPath {
		return landing
	}
	if s, ok := screenForPath(u.Path); ok && !s.Allows(role) {
		return landing
	}
	return p
}

// screenForPath finds the protected screen owning path, including its sub-pages.
func screenForPath(path string) (domainauth.Screen, bool) {
	for _, s := range protectedScreens {
		if path == s.Path || strings.HasPrefix(path, s.Path+"/") {
			return s, true
		}
	}
	return domainauth.Screen{}, false
}

func isJSONBody(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
