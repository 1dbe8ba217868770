package entity

// Role is the authorization level of an identity.
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// Account status values used by the admin users directory.
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

// Identity is the authenticated user as the backend describes it.
type Identity struct {
	ID       string `json:"id"`
	Name     string `json:"full_name"`
	Email    string `json:"email"`
	Role     Role   `json:"role,omitempty"`
	Status   string `json:"status,omitempty"`
	JoinDate string `json:"joined,omitempty"`
}

// IsAdmin reports whether the identity may use the admin build.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Session pairs an identity with its bearer token. Both are present or neither is.
type Session struct {
	Identity Identity `json:"user"`
	Token    string   `json:"token"`
}
