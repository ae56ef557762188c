package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/ledgerly/config"
	"github.com/target/ledgerly/internal/adapters/keyring"
	"github.com/target/ledgerly/internal/adapters/memstore"
	"github.com/target/ledgerly/internal/adapters/postgres"
	redisadapter "github.com/target/ledgerly/internal/adapters/redis"
	"github.com/target/ledgerly/internal/data/cryptoutil"
	"github.com/target/ledgerly/internal/ports"
)

// StoresConfig contains configuration for the credential and preference stores.
type StoresConfig struct {
	Storage  config.StorageConfig
	Postgres config.DBConfig
	Redis    config.RedisConfig
	Logger   *slog.Logger
}

// Stores holds the stores for the selected backend and any connections they own.
type Stores struct {
	Backend     config.StorageBackend
	Credentials ports.CredentialStore
	Preferences ports.PreferenceStore

	// DB is set for the postgres backend.
	DB    *sql.DB
	redis redis.UniversalClient
}

// BuildStores opens the configured backend.
func BuildStores(ctx context.Context, cfg StoresConfig) (*Stores, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sealer, err := newSealer(cfg.Storage.EncryptionKey)
	if err != nil {
		return nil, err
	}

	switch cfg.Storage.Backend {
	case config.StorageMemory:
		return &Stores{
			Backend:     config.StorageMemory,
			Credentials: memstore.New(),
			Preferences: memstore.New(),
		}, nil

	case config.StorageRedis:
		client, err := ConnectRedis(ctx, DatabaseConfig{RedisConfig: cfg.Redis, Logger: logger})
		if err != nil {
			return nil, err
		}
		prefix := cfg.Storage.RedisPrefix
		return &Stores{
			Backend:     config.StorageRedis,
			Credentials: sealCredentials(redisadapter.NewKVStoreWithPrefix(client, prefix+"cred:"), sealer, logger),
			Preferences: redisadapter.NewKVStoreWithPrefix(client, prefix+"pref:"),
			redis:       client,
		}, nil

	case config.StoragePostgres:
		db, err := ConnectDB(ctx, DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.RunMigrationsOnStart {
			if _, err := RunMigrations(ctx, db, logger); err != nil {
				return nil, errors.Join(err, db.Close())
			}
		}
		return &Stores{
			Backend:     config.StoragePostgres,
			Credentials: sealCredentials(postgres.NewCredentialStore(db, cfg.Storage.Scope), sealer, logger),
			Preferences: postgres.NewPreferenceStore(db, cfg.Storage.Scope),
			DB:          db,
		}, nil

	case config.StorageKeyring, "":
		service := cfg.Storage.KeyringService
		return &Stores{
			Backend:     config.StorageKeyring,
			Credentials: keyring.New(service),
			Preferences: keyring.New(service + ".preferences"),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}

func newSealer(key string) (cryptoutil.Sealer, error) {
	if key == "" {
		return nil, nil
	}
	s, err := cryptoutil.NewAESGCMFromString(key)
	if err != nil {
		return nil, fmt.Errorf("storage encryption key: %w", err)
	}
	return s, nil
}

// sealCredentials wraps shared-storage credentials when a key is configured.
// Plaintext values written before the key was set are still readable.
//
//nolint:ireturn // store selection returns the port
func sealCredentials(inner ports.CredentialStore, sealer cryptoutil.Sealer, logger *slog.Logger) ports.CredentialStore {
	if sealer == nil {
		logger.Warn("storage encryption key is empty, credentials stored in plaintext")
		return inner
	}
	store := cryptoutil.NewStore(inner, sealer)
	store.AllowPlaintext = true
	return store
}

// Close releases connections owned by the stores.
func (s *Stores) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis client: %w", err))
		}
	}
	return errors.Join(errs...)
}
