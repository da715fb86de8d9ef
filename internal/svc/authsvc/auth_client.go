package authsvc

import (
	"context"

	"github.com/Sosiggg/EnviroSense/internal/domain"
)

// Client defines the interface for the remote EnviroSense auth API.
type Client interface {
	// Token exchanges a username/password pair for a bearer token.
	// Returns domain.ErrInvalidCredentials if the backend rejects the pair.
	Token(ctx context.Context, username, password string) (string, error)

	// Register creates a new account.
	// Returns the backend's confirmation message.
	Register(ctx context.Context, username, email, password string) (string, error)

	// Me fetches the profile of the account the credential belongs to.
	Me(ctx context.Context) (domain.User, error)

	// UpdateMe replaces the mutable profile fields.
	// Returns the updated record as reported by the backend.
	UpdateMe(ctx context.Context, username, email string) (domain.User, error)

	// ChangePassword rotates the account password.
	ChangePassword(ctx context.Context, currentPassword, newPassword string) error

	// ForgotPassword requests reset instructions for the account behind email.
	// The backend's message never reveals whether the account exists.
	ForgotPassword(ctx context.Context, email string) (string, error)

	// ResetPassword completes a password reset with the emailed token.
	// Returns the backend's confirmation message.
	ResetPassword(ctx context.Context, resetToken, email, newPassword string) (string, error)
}
