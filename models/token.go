package models

import "github.com/golang-jwt/jwt/v5"

// Role of a user as asserted by the external auth service.
type Role string

const (
	RoleUser    Role = "user"
	RoleCreator Role = "creator"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleCreator, RoleAdmin:
		return true
	}
	return false
}

// CanPinGlobally reports whether the role may set or clear global pins.
func (r Role) CanPinGlobally() bool {
	return r == RoleCreator || r == RoleAdmin
}

// Identity is what the chat core trusts about a connection once the credential
// has been verified.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// TokenClaims is the JWT payload issued by the auth service.
type TokenClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}
