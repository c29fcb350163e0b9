package auth

import (
	"net/url"
	"strings"
)

// DecisionKind is the outcome class of a gate evaluation.
type DecisionKind int

const (
	DecisionRender DecisionKind = iota
	DecisionLoading
	DecisionRedirect
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionRender:
		return "render"
	case DecisionLoading:
		return "loading"
	case DecisionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision tells the caller what to do with a navigation. Location is set only for redirects.
type Decision struct {
	Kind     DecisionKind
	Location string
}

// Evaluate decides whether screen may be rendered for state. It performs no I/O.
//
// Unresolved sessions get a loading decision, anonymous sessions are sent to the
// login screen with requestedPath recorded, and signed-in users without an allowed
// role are sent to their own landing path. Wrong-role access never yields an
// error or a login redirect.
func Evaluate(state SessionState, screen Screen, requestedPath string) Decision {
	switch {
	case state.Status == StatusUnresolved:
		return Decision{Kind: DecisionLoading}
	case !state.IsAuthenticated():
		return Decision{Kind: DecisionRedirect, Location: LoginRedirect(requestedPath)}
	case screen.Allows(state.Identity.Role):
		return Decision{Kind: DecisionRender}
	default:
		return Decision{Kind: DecisionRedirect, Location: LandingPath(state.Identity.Role)}
	}
}

// LoginRedirect returns the login URL, carrying requestedPath as redirect_uri when it
// is a safe same-origin path.
func LoginRedirect(requestedPath string) string {
	if !IsSafeRedirectPath(requestedPath) || requestedPath == "/" {
		return LoginPath
	}
	return LoginPath + "?redirect_uri=" + url.QueryEscape(requestedPath)
}

// IsSafeRedirectPath reports whether p is a relative, same-origin path.
func IsSafeRedirectPath(p string) bool {
	if p == "" || !strings.HasPrefix(p, "/") {
		return false
	}
	// "//host" and "/\host" are treated as network paths by browsers.
	if strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	if err != nil || u.IsAbs() || u.Host != "" {
		return false
	}
	return true
}

// SafeRedirectPath returns p when it is a safe redirect target and fallback otherwise.
func SafeRedirectPath(p, fallback string) string {
	if IsSafeRedirectPath(p) {
		return p
	}
	return fallback
}
