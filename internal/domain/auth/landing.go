package auth

// LoginPath is where anonymous users are sent.
const LoginPath = "/login"

const (
	superAdminLanding = "/super-admin/dashboard"
	adminLanding      = "/admin/dashboard"
	publicLanding     = "/"
)

// LandingPath returns the default screen for a role, used after login and when a
// signed-in user requests a screen their role may not view.
func LandingPath(r Role) string {
	switch r {
	case RoleSuperAdmin:
		return superAdminLanding
	case RoleAdmin:
		return adminLanding
	default:
		return publicLanding
	}
}
