// Package auth contains the domain rules for who the current user is and what they may see.
// It is pure and free of framework/adapter concerns.
package auth

import "fmt"

// Role is a canonical authorization role. Backend role strings are never compared
// directly; they are mapped to a Role with NormalizeRole first.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleAdmin       Role = "admin"
	RoleRegularUser Role = "user"
)

// roleAliases maps raw backend spellings to canonical roles.
// Matching is exact; case variants are listed individually. Read-only after init.
var roleAliases = map[string]Role{
	"admin":         RoleAdmin,
	"admin_majelis": RoleAdmin,
	"Admin Majelis": RoleAdmin,
	"super_admin":   RoleSuperAdmin,
	"superadmin":    RoleSuperAdmin,
	"Super Admin":   RoleSuperAdmin,
}

// NormalizeRole maps a raw role string to a canonical Role.
// Unrecognized input, including the empty string, maps to RoleRegularUser.
func NormalizeRole(raw string) Role {
	if r, ok := roleAliases[raw]; ok {
		return r
	}
	return RoleRegularUser
}

// AllRoles returns the canonical roles, highest privilege first.
func AllRoles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleRegularUser}
}

// Valid reports whether r is one of the canonical roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleRegularUser:
		return true
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }

// ParseRole accepts only canonical spellings. Use NormalizeRole for backend input.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}
