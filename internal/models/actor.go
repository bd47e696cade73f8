package models

// Role is the capability level asserted by the identity provider.
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Actor identifies the caller of an operation. UserID is zero for anonymous
// callers, in which case ClientAddr identifies them for admission control.
type Actor struct {
	UserID     uint
	Role       Role
	ClientAddr string
}

func (a Actor) Authenticated() bool { return a.UserID != 0 }

// IsModerator reports moderator or admin capability.
func (a Actor) IsModerator() bool {
	return a.Role == RoleModerator || a.Role == RoleAdmin
}
