package pairlink

// SessionID names a two-role rendezvous point. It is caller supplied, opaque
// and case sensitive.
type SessionID string

// Role is one of the two fixed participant positions in a session.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// Valid reports whether r is one of the two defined roles.
func (r Role) Valid() bool {
	return r == RoleInitiator || r == RoleResponder
}

// Opposite returns the other role, or "" for an invalid role.
func (r Role) Opposite() Role {
	switch r {
	case RoleInitiator:
		return RoleResponder
	case RoleResponder:
		return RoleInitiator
	}
	return ""
}
