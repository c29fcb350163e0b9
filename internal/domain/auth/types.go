package auth

// Profile is the user record as reported by the backend, before role normalization.
type Profile struct {
	ID          string
	DisplayName string
	Email       string
	RawRole     string
}

// Identity represents the authenticated principal.
// Role is always derived from RawRole; build values with NewIdentity.
type Identity struct {
	ID          string
	DisplayName string
	Email       string
	RawRole     string
	Role        Role
	AuthToken   string
}

// NewIdentity builds an Identity from a backend profile and the bearer token that proved it.
func NewIdentity(p Profile, token string) Identity {
	return Identity{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		RawRole:     p.RawRole,
		Role:        NormalizeRole(p.RawRole),
		AuthToken:   token,
	}
}

// SessionStatus is the tri-state of a client session.
type SessionStatus int

const (
	// StatusUnresolved means startup hydration has not finished yet.
	StatusUnresolved SessionStatus = iota
	StatusAuthenticated
	StatusAnonymous
)

func (s SessionStatus) String() string {
	switch s {
	case StatusUnresolved:
		return "unresolved"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// SessionState is a snapshot of a client's session. Identity is non-nil only when
// Status is StatusAuthenticated.
type SessionState struct {
	Status   SessionStatus
	Identity *Identity
}

// Unresolved returns the initial state.
func Unresolved() SessionState { return SessionState{Status: StatusUnresolved} }

// Anonymous returns the signed-out state.
func Anonymous() SessionState { return SessionState{Status: StatusAnonymous} }

// Authenticated returns a signed-in state holding a copy of id.
func Authenticated(id Identity) SessionState {
	return SessionState{Status: StatusAuthenticated, Identity: &id}
}

// IsAuthenticated reports whether the state carries an identity.
func (s SessionState) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated && s.Identity != nil
}
