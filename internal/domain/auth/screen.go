package auth

import (
	"fmt"
	"slices"
)

// Screen declares a protected route and the roles allowed to view it.
// There is no role hierarchy: a super admin sees a screen only if listed.
type Screen struct {
	Name    string
	Path    string
	allowed map[Role]struct{}
}

// NewScreen builds a Screen. It fails on an empty role set or a non-canonical role.
func NewScreen(name, path string, roles ...Role) (Screen, error) {
	if len(roles) == 0 {
		return Screen{}, fmt.Errorf("screen %q: %w", name, ErrEmptyRoleSet)
	}
	allowed := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		if !r.Valid() {
			return Screen{}, fmt.Errorf("screen %q: %w: %q", name, ErrInvalidRole, r)
		}
		allowed[r] = struct{}{}
	}
	return Screen{Name: name, Path: path, allowed: allowed}, nil
}

// MustScreen is NewScreen for static route tables; it panics on error.
func MustScreen(name, path string, roles ...Role) Screen {
	s, err := NewScreen(name, path, roles...)
	if err != nil {
		panic(err)
	}
	return s
}

// Allows reports whether r may view the screen. The zero Screen allows nobody.
func (s Screen) Allows(r Role) bool {
	_, ok := s.allowed[r]
	return ok
}

// Roles returns the allowed roles in a stable order.
func (s Screen) Roles() []Role {
	out := make([]Role, 0, len(s.allowed))
	for _, r := range AllRoles() {
		if _, ok := s.allowed[r]; ok {
			out = append(out, r)
		}
	}
	return slices.Clip(out)
}
