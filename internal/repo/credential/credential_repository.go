package credential

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Sosiggg/EnviroSense/internal/domain"
)

// Storage keys shared by all backends. They mirror the layout the EnviroSense
// web client uses in browser local storage.
const (
	// storageKeyToken holds the bearer token string.
	storageKeyToken = "token"
	// storageKeyUser holds the serialized user snapshot.
	storageKeyUser = "user"
)

// Repository defines the interface for credential persistence.
type Repository interface {
	// Store persists the credential, replacing any previous one.
	// Returns an error if the operation fails.
	Store(ctx context.Context, cred domain.Credential) error

	// Load retrieves the stored credential.
	// Returns the credential and true if present, or a zero credential and false if not present.
	// Returns an error if the operation fails.
	Load(ctx context.Context) (domain.Credential, bool, error)

	// Clear removes any stored credential.
	// Clearing an empty store is not an error.
	Clear(ctx context.Context) error

	// Close releases any resources held by the repository.
	// Returns an error if cleanup fails.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func() (Repository, error)

func encodeUser(user *domain.User) (string, error) {
	if user == nil {
		return "", nil
	}

	raw, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("encode user: %w", err)
	}

	return string(raw), nil
}

func decodeUser(raw string) (*domain.User, error) {
	if raw == "" {
		return nil, nil //nolint:nilnil
	}

	var user domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}

	return &user, nil
}
