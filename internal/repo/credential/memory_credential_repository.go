package credential

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sosiggg/EnviroSense/internal/domain"
)

// MemoryCredentialRepository implements Repository with process-local storage.
// Credentials are lost when the process exits.
type MemoryCredentialRepository struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Repository = (*MemoryCredentialRepository)(nil)

// MemoryCredentialRepositoryFactory creates a factory function that returns a new
// MemoryCredentialRepository. The factory function implements the RepositoryFactory type.
func MemoryCredentialRepositoryFactory() RepositoryFactory {
	return func() (Repository, error) {
		return NewMemoryCredentialRepository(), nil
	}
}

// NewMemoryCredentialRepository creates an empty in-memory credential repository.
func NewMemoryCredentialRepository() *MemoryCredentialRepository {
	return &MemoryCredentialRepository{
		values: make(map[string]string),
	}
}

// Store implements Repository.Store.
func (r *MemoryCredentialRepository) Store(ctx context.Context, cred domain.Credential) error {
	user, err := encodeUser(cred.User)
	if err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.values[storageKeyToken] = cred.Token

	if user == "" {
		delete(r.values, storageKeyUser)
	} else {
		r.values[storageKeyUser] = user
	}

	return nil
}

// Load implements Repository.Load.
func (r *MemoryCredentialRepository) Load(ctx context.Context) (domain.Credential, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.values[storageKeyToken]
	if !ok || token == "" {
		return domain.Credential{}, false, nil
	}

	user, err := decodeUser(r.values[storageKeyUser])
	if err != nil {
		return domain.Credential{}, false, fmt.Errorf("load credential: %w", err)
	}

	return domain.Credential{Token: token, User: user}, true, nil
}

// Clear implements Repository.Clear.
func (r *MemoryCredentialRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.values, storageKeyToken)
	delete(r.values, storageKeyUser)

	return nil
}

// Close implements Repository.Close. It is a no-op for the in-memory backend.
func (r *MemoryCredentialRepository) Close() error {
	return nil
}
