package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	adminScreen      = MustScreen("admin-dashboard", "/admin/dashboard", RoleAdmin, RoleSuperAdmin)
	superAdminScreen = MustScreen("finance", "/super-admin/finance", RoleSuperAdmin)
)

func authed(raw string) SessionState {
	return Authenticated(NewIdentity(Profile{ID: "u1", RawRole: raw}, "tok"))
}

func TestEvaluate_UnresolvedIsLoading(t *testing.T) {
	for _, sc := range []Screen{adminScreen, superAdminScreen} {
		d := Evaluate(Unresolved(), sc, sc.Path)
		assert.Equal(t, DecisionLoading, d.Kind)
		assert.Empty(t, d.Location)
	}
}

func TestEvaluate_AnonymousRedirectsToLogin(t *testing.T) {
	for _, sc := range []Screen{adminScreen, superAdminScreen} {
		d := Evaluate(Anonymous(), sc, sc.Path)
		assert.Equal(t, DecisionRedirect, d.Kind)
		assert.Equal(t, LoginRedirect(sc.Path), d.Location)
	}

	d := Evaluate(Anonymous(), adminScreen, "/admin/dashboard?page=2")
	assert.Equal(t, "/login?redirect_uri=%2Fadmin%2Fdashboard%3Fpage%3D2", d.Location)
}

func TestEvaluate_AuthorizedRenders(t *testing.T) {
	d := Evaluate(authed("admin_majelis"), adminScreen, adminScreen.Path)
	assert.Equal(t, Decision{Kind: DecisionRender}, d)

	d = Evaluate(authed("Super Admin"), adminScreen, adminScreen.Path)
	assert.Equal(t, DecisionRender, d.Kind)
}

func TestEvaluate_WrongRoleBouncesToOwnLanding(t *testing.T) {
	d := Evaluate(authed("admin"), superAdminScreen, superAdminScreen.Path)
	assert.Equal(t, Decision{Kind: DecisionRedirect, Location: "/admin/dashboard"}, d)

	d = Evaluate(authed("jemaat"), adminScreen, adminScreen.Path)
	assert.Equal(t, Decision{Kind: DecisionRedirect, Location: "/"}, d)
}

func TestEvaluate_NoImplicitHierarchy(t *testing.T) {
	adminOnly := MustScreen("admin-only", "/admin/only", RoleAdmin)
	d := Evaluate(authed("superadmin"), adminOnly, adminOnly.Path)
	assert.Equal(t, DecisionRedirect, d.Kind)
	assert.Equal(t, "/super-admin/dashboard", d.Location)
}

func TestEvaluate_GridMatchesAllows(t *testing.T) {
	screens := []Screen{
		adminScreen,
		superAdminScreen,
		MustScreen("members", "/members", RoleRegularUser, RoleAdmin, RoleSuperAdmin),
	}
	for _, sc := range screens {
		for _, r := range AllRoles() {
			d := Evaluate(Authenticated(Identity{ID: "x", Role: r}), sc, sc.Path)
			if sc.Allows(r) {
				assert.Equal(t, DecisionRender, d.Kind, "%s/%s", sc.Name, r)
				continue
			}
			assert.Equal(t, DecisionRedirect, d.Kind, "%s/%s", sc.Name, r)
			assert.Equal(t, LandingPath(r), d.Location)
			assert.NotContains(t, d.Location, LoginPath)
		}
	}
}

func TestLoginRedirect(t *testing.T) {
	assert.Equal(t, "/login", LoginRedirect(""))
	assert.Equal(t, "/login", LoginRedirect("/"))
	assert.Equal(t, "/login", LoginRedirect("https://evil.example/x"))
	assert.Equal(t, "/login", LoginRedirect("//evil.example/x"))
	assert.Equal(t, "/login", LoginRedirect("/\\evil.example"))
	assert.Equal(t, "/login?redirect_uri=%2Fadmin%2Fwarta", LoginRedirect("/admin/warta"))
}

func TestSafeRedirectPath(t *testing.T) {
	assert.Equal(t, "/admin/dashboard", SafeRedirectPath("/admin/dashboard", "/"))
	assert.Equal(t, "/", SafeRedirectPath("javascript:alert(1)", "/"))
	assert.Equal(t, "/x", SafeRedirectPath("relative", "/x"))
}

func TestNewScreen_Validation(t *testing.T) {
	_, err := NewScreen("empty", "/empty")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyRoleSet))

	_, err = NewScreen("bad", "/bad", Role("Admin Majelis"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRole))

	assert.Panics(t, func() { MustScreen("empty", "/empty") })
}

func TestScreen_Roles(t *testing.T) {
	sc := MustScreen("s", "/s", RoleAdmin, RoleSuperAdmin, RoleAdmin)
	assert.Equal(t, []Role{RoleSuperAdmin, RoleAdmin}, sc.Roles())
	assert.False(t, Screen{}.Allows(RoleSuperAdmin))
}

func TestLandingPath(t *testing.T) {
	assert.Equal(t, "/super-admin/dashboard", LandingPath(RoleSuperAdmin))
	assert.Equal(t, "/admin/dashboard", LandingPath(RoleAdmin))
	assert.Equal(t, "/", LandingPath(RoleRegularUser))
	assert.Equal(t, "/", LandingPath(Role("bogus")))
	for _, r := range AllRoles() {
		assert.NotEmpty(t, LandingPath(r))
	}
}

func TestDecisionKind_String(t *testing.T) {
	assert.Equal(t, "render", DecisionRender.String())
	assert.Equal(t, "loading", DecisionLoading.String())
	assert.Equal(t, "redirect", DecisionRedirect.String())
}
