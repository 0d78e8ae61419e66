// Package chat contains the core concepts of the room chat system:
// identities, rooms, persisted messages and the envelopes pushed to clients.
// No runtime, network or storage logic belongs here.
package chat

// Role is the authorization level carried by an identity.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Elevated roles may moderate content they do not own.
func (r Role) Elevated() bool {
	return r == RoleAdmin
}

type UserID int64

// Identity is the verified caller of a session. It never changes while the session lives.
type Identity struct {
	ID       UserID
	Username string
	Role     Role
}
