package domain

import "time"

type UserID string

type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the roles a profile may carry.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// Identity is what the identity provider vouches for after authenticating a bearer token.
type Identity struct {
	UserID UserID
	Role   Role
	Email  string
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

type Profile struct {
	ID        UserID    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
