package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Sosiggg/EnviroSense/internal/domain"
	"github.com/Sosiggg/EnviroSense/internal/infra/logging"
)

// RedisCredentialRepositoryConfig holds configuration for the Redis credential repository.
type RedisCredentialRepositoryConfig struct {
	// Addr is the Redis server address
	Addr string `env:"ADDR" default:"localhost:6379"`

	// Password is the Redis server password, empty for no authentication
	Password string `env:"PASSWORD" default:""`

	// DB is the Redis logical database number
	DB int `env:"DB" default:"0"`

	// KeyPrefix namespaces the credential keys
	KeyPrefix string `env:"KEY_PREFIX" default:"envisense"`
}

// RedisCredentialRepository implements Repository using Redis as the storage
// backend. Kiosk deployments use it to share one operator session across
// several displays.
type RedisCredentialRepository struct {
	client *redis.Client
	prefix string
	log    logging.Logger
}

var _ Repository = (*RedisCredentialRepository)(nil)

// RedisCredentialRepositoryFactory creates a factory function that returns a new
// RedisCredentialRepository. The factory function implements the RepositoryFactory type.
func RedisCredentialRepositoryFactory(cfg RedisCredentialRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewRedisCredentialRepository(cfg)
	}
}

// NewRedisCredentialRepository creates a new RedisCredentialRepository with the given
// configuration and verifies connectivity.
// Returns an error if the server cannot be reached.
func NewRedisCredentialRepository(cfg RedisCredentialRepositoryConfig) (*RedisCredentialRepository, error) {
	log := logging.GetLogger("repo.credential.redis_credential_repository").With(
		logging.Group("redis", "addr", cfg.Addr, "db", cfg.DB, "prefix", cfg.KeyPrefix),
	)

	//nolint:exhaustruct
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		err = errors.Join(domain.ErrCredentialStoreUnavailable, err)

		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisCredentialRepository{
		client: client,
		prefix: cfg.KeyPrefix,
		log:    log,
	}, nil
}

func (r *RedisCredentialRepository) key(name string) string {
	return r.prefix + ":" + name
}

// Store implements Repository.Store using Redis.
func (r *RedisCredentialRepository) Store(ctx context.Context, cred domain.Credential) (err error) {
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

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(storageKeyToken), cred.Token, 0)

	if user == "" {
		pipe.Del(ctx, r.key(storageKeyUser))
	} else {
		pipe.Set(ctx, r.key(storageKeyUser), user, 0)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		err = errors.Join(domain.ErrCredentialStoreUnavailable, err)

		return fmt.Errorf("set credential: %w", err)
	}

	return nil
}

// Load implements Repository.Load using Redis.
func (r *RedisCredentialRepository) Load(ctx context.Context) (domain.Credential, bool, error) {
	token, err := r.client.Get(ctx, r.key(storageKeyToken)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Credential{}, false, nil
		}

		err = errors.Join(domain.ErrCredentialStoreUnavailable, err)

		return domain.Credential{}, false, fmt.Errorf("get token: %w", err)
	}

	if token == "" {
		return domain.Credential{}, false, nil
	}

	rawUser, err := r.client.Get(ctx, r.key(storageKeyUser)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		err = errors.Join(domain.ErrCredentialStoreUnavailable, err)

		return domain.Credential{}, false, fmt.Errorf("get user: %w", err)
	}

	user, err := decodeUser(rawUser)
	if err != nil {
		return domain.Credential{}, false, fmt.Errorf("load credential: %w", err)
	}

	return domain.Credential{Token: token, User: user}, true, nil
}

// Clear implements Repository.Clear using Redis.
func (r *RedisCredentialRepository) Clear(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			r.log.ErrorContext(ctx, "credential clear failed", "error", err)
		} else {
			r.log.DebugContext(ctx, "credential cleared")
		}
	}()

	if err := r.client.Del(ctx, r.key(storageKeyToken), r.key(storageKeyUser)).Err(); err != nil {
		err = errors.Join(domain.ErrCredentialStoreUnavailable, err)

		return fmt.Errorf("delete credential: %w", err)
	}

	return nil
}

// Close implements Repository.Close by closing the Redis client.
func (r *RedisCredentialRepository) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}

	return nil
}
