package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Sosiggg/EnviroSense/internal/domain"
	"github.com/Sosiggg/EnviroSense/internal/infra/logging"
)

// FileCredentialRepositoryConfig holds configuration for the file-based credential repository.
type FileCredentialRepositoryConfig struct {
	// CredentialsPath is the filesystem path of the credential document
	CredentialsPath string `env:"CREDENTIALS_PATH" default:"var/envisense/credentials.json"`
}

// FileCredentialRepository implements Repository with a single JSON document on
// the local filesystem. It is the desktop analog of the web client's local
// storage: the document holds the token and user keys and survives restarts.
type FileCredentialRepository struct {
	path string
	log  logging.Logger
	m    *sync.Mutex
}

var _ Repository = (*FileCredentialRepository)(nil)

// FileCredentialRepositoryFactory creates a factory function that returns a new
// FileCredentialRepository. The factory function implements the RepositoryFactory type.
func FileCredentialRepositoryFactory(cfg FileCredentialRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewFileCredentialRepository(cfg)
	}
}

// NewFileCredentialRepository creates a new FileCredentialRepository with the given
// configuration. It creates the parent directory if needed.
// Returns an error if initialization fails.
func NewFileCredentialRepository(cfg FileCredentialRepositoryConfig) (*FileCredentialRepository, error) {
	log := logging.GetLogger("repo.credential.file_credential_repository").With(
		logging.Group("store", "path", cfg.CredentialsPath),
	)

	if err := os.MkdirAll(filepath.Dir(cfg.CredentialsPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir all: %w", err)
	}

	return &FileCredentialRepository{
		path: cfg.CredentialsPath,
		log:  log,
		m:    new(sync.Mutex),
	}, nil
}

type credentialDocument struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user,omitempty"`
}

// Store implements Repository.Store. The document is written to a temporary
// file and renamed into place so readers never observe a partial write.
func (r *FileCredentialRepository) Store(ctx context.Context, cred domain.Credential) (err error) {
	r.m.Lock()
	defer r.m.Unlock()

	defer func() {
		if err != nil {
			r.log.ErrorContext(ctx, "credential store failed", "error", err)
		} else {
			r.log.DebugContext(ctx, "credential stored")
		}
	}()

	raw, err := json.Marshal(credentialDocument{Token: cred.Token, User: cred.User})
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		err = errors.Join(domain.ErrCredentialStoreUnavailable, err)

		return fmt.Errorf("write credential: %w", err)
	}

	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)

		err = errors.Join(domain.ErrCredentialStoreUnavailable, err)

		return fmt.Errorf("rename credential: %w", err)
	}

	return nil
}

// Load implements Repository.Load.
func (r *FileCredentialRepository) Load(ctx context.Context) (domain.Credential, bool, error) {
	r.m.Lock()
	defer r.m.Unlock()

	raw, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Credential{}, false, nil
		}

		err = errors.Join(domain.ErrCredentialStoreUnavailable, err)

		return domain.Credential{}, false, fmt.Errorf("read credential: %w", err)
	}

	var doc credentialDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Credential{}, false, fmt.Errorf("decode credential: %w", err)
	}

	if doc.Token == "" {
		return domain.Credential{}, false, nil
	}

	return domain.Credential{Token: doc.Token, User: doc.User}, true, nil
}

// Clear implements Repository.Clear by removing the credential document.
func (r *FileCredentialRepository) Clear(ctx context.Context) (err error) {
	r.m.Lock()
	defer r.m.Unlock()

	defer func() {
		if err != nil {
			r.log.ErrorContext(ctx, "credential clear failed", "error", err)
		} else {
			r.log.DebugContext(ctx, "credential cleared")
		}
	}()

	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		err = errors.Join(domain.ErrCredentialStoreUnavailable, err)

		return fmt.Errorf("remove credential: %w", err)
	}

	return nil
}

// Close implements Repository.Close. It is a no-op for the file backend.
func (r *FileCredentialRepository) Close() error {
	return nil
}
