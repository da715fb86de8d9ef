package domain

import "errors"

var (
	// ErrInvalidCredentials is returned when the username/password combination is rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotAuthenticated is returned when an operation requires an authenticated session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// User represents the authenticated account as reported by the EnviroSense API.
type User struct {
	ID       int64    `json:"id"`              // Unique identifier
	Username string   `json:"username"`        // Login username
	Email    string   `json:"email"`           // Contact address
	IsActive bool     `json:"is_active"`       // Whether the account is enabled
	Roles    []string `json:"roles,omitempty"` // Role identifiers for permission checks
}

// HasRole reports whether the user carries the given role identifier.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}

	return false
}

// UserPatch describes a partial profile update. Nil fields are left unchanged.
type UserPatch struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p UserPatch) IsZero() bool {
	return p.Username == nil && p.Email == nil
}

// Apply returns a copy of user with the patch's non-nil fields overwritten.
func (p UserPatch) Apply(user User) User {
	if p.Username != nil {
		user.Username = *p.Username
	}

	if p.Email != nil {
		user.Email = *p.Email
	}

	return user
}
