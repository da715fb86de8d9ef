package domain

import "errors"

var (
	// ErrNoCredential is returned when no credential is stored for the session.
	ErrNoCredential = errors.New("no credential")
	// ErrSessionExpired is returned when the backend no longer accepts the stored token.
	ErrSessionExpired = errors.New("session expired")
	// ErrCredentialStoreUnavailable is returned when the credential store cannot be read or written.
	ErrCredentialStoreUnavailable = errors.New("credential store unavailable")
)

// Credential is the persisted authentication state: the bearer token issued by
// the EnviroSense API and the last known snapshot of the account it belongs to.
type Credential struct {
	Token string `json:"token"`          // Bearer token as issued, without scheme prefix
	User  *User  `json:"user,omitempty"` // Cached profile snapshot, may be nil
}

// IsZero reports whether the credential holds no token.
func (c Credential) IsZero() bool {
	return c.Token == ""
}
