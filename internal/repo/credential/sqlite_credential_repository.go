package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // database/sql driver

	"github.com/Sosiggg/EnviroSense/internal/domain"
	"github.com/Sosiggg/EnviroSense/internal/infra/logging"
)

// SQLiteCredentialRepositoryConfig holds configuration for the SQLite credential repository.
type SQLiteCredentialRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/envisense/credentials.db"`
}

// SQLiteCredentialRepository implements Repository using SQLite as the storage backend.
// The credential is stored as key/value rows so the layout matches the other backends.
type SQLiteCredentialRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteCredentialRepository)(nil)

// SQLiteCredentialRepositoryFactory creates a factory function that returns a new
// SQLiteCredentialRepository. The factory function implements the RepositoryFactory type.
func SQLiteCredentialRepositoryFactory(cfg SQLiteCredentialRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewSQLiteCredentialRepository(cfg)
	}
}

// NewSQLiteCredentialRepository creates a new SQLiteCredentialRepository with the given
// configuration. It initializes the database connection and creates the schema if needed.
// Returns an error if database connection or initialization fails.
func NewSQLiteCredentialRepository(cfg SQLiteCredentialRepositoryConfig) (*SQLiteCredentialRepository, error) {
	log := logging.GetLogger("repo.credential.sqlite_credential_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := initializeDB(db); err != nil {
		return nil, fmt.Errorf("initialize db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteCredentialRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

func initializeDB(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Store implements Repository.Store using SQLite.
func (r *SQLiteCredentialRepository) Store(ctx context.Context, cred domain.Credential) (err error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	defer func() {
		if err != nil {
			r.log.ErrorContext(ctx, "credential store failed", "error", err)
		} else {
			r.log.DebugContext(ctx, "credential stored")
		}
	}()

	user, err := encodeUser(cred.User)
	if err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		err = errors.Join(domain.ErrCredentialStoreUnavailable, err)

		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(
		"INSERT INTO credentials (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		storageKeyToken,
		cred.Token,
	); err != nil {
		err = errors.Join(domain.ErrCredentialStoreUnavailable, err)

		return fmt.Errorf("upsert token: %w", err)
	}

	if user == "" {
		if _, err := tx.Exec("DELETE FROM credentials WHERE key = ?", storageKeyUser); err != nil {
			err = errors.Join(domain.ErrCredentialStoreUnavailable, err)

			return fmt.Errorf("delete user: %w", err)
		}
	} else if _, err := tx.Exec(
		"INSERT INTO credentials (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		storageKeyUser,
		user,
	); err != nil {
		err = errors.Join(domain.ErrCredentialStoreUnavailable, err)

		return fmt.Errorf("upsert user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		err = errors.Join(domain.ErrCredentialStoreUnavailable, err)

		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// Load implements Repository.Load using SQLite.
func (r *SQLiteCredentialRepository) Load(ctx context.Context) (domain.Credential, bool, error) {
	var token string

	err := r.db.QueryRow(
		"SELECT value FROM credentials WHERE key = ?", storageKeyToken,
	).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Credential{}, false, nil
		}

		err = errors.Join(domain.ErrCredentialStoreUnavailable, err)

		return domain.Credential{}, false, fmt.Errorf("query token: %w", err)
	}

	if token == "" {
		return domain.Credential{}, false, nil
	}

	var rawUser string

	err = r.db.QueryRow(
		"SELECT value FROM credentials WHERE key = ?", storageKeyUser,
	).Scan(&rawUser)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		err = errors.Join(domain.ErrCredentialStoreUnavailable, err)

		return domain.Credential{}, false, fmt.Errorf("query user: %w", err)
	}

	user, err := decodeUser(rawUser)
	if err != nil {
		return domain.Credential{}, false, fmt.Errorf("load credential: %w", err)
	}

	return domain.Credential{Token: token, User: user}, true, nil
}

// Clear implements Repository.Clear using SQLite.
func (r *SQLiteCredentialRepository) Clear(ctx context.Context) (err error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	defer func() {
		if err != nil {
			r.log.ErrorContext(ctx, "credential clear failed", "error", err)
		} else {
			r.log.DebugContext(ctx, "credential cleared")
		}
	}()

	if _, err := r.db.Exec(
		"DELETE FROM credentials WHERE key IN (?, ?)", storageKeyToken, storageKeyUser,
	); err != nil {
		err = errors.Join(domain.ErrCredentialStoreUnavailable, err)

		return fmt.Errorf("delete credential: %w", err)
	}

	return nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteCredentialRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
