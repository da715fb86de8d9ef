package credential

import (
	"errors"
	"fmt"
	"strings"
)

// Backend names accepted by StoreConfig.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// ErrUnknownBackend is returned when StoreConfig names a backend that does not exist.
var ErrUnknownBackend = errors.New("unknown credential store backend")

// StoreConfig selects and configures the credential store backend.
type StoreConfig struct {
	// Backend selects the store implementation ("memory", "file", "sqlite" or "redis")
	Backend string `env:"BACKEND" default:"file"`

	File   FileCredentialRepositoryConfig   `envPrefix:"FILE_"`
	SQLite SQLiteCredentialRepositoryConfig `envPrefix:"SQLITE_"`
	Redis  RedisCredentialRepositoryConfig  `envPrefix:"REDIS_"`
}

// NewRepositoryFactory returns the factory for the backend selected by cfg.
func NewRepositoryFactory(cfg StoreConfig) (RepositoryFactory, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendMemory:
		return MemoryCredentialRepositoryFactory(), nil
	case BackendFile:
		return FileCredentialRepositoryFactory(cfg.File), nil
	case BackendSQLite:
		return SQLiteCredentialRepositoryFactory(cfg.SQLite), nil
	case BackendRedis:
		return RedisCredentialRepositoryFactory(cfg.Redis), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
