package config

import (
	"fmt"
	"strings"
	"time"
)

// StorageBackend selects where credentials and preferences are persisted.
type StorageBackend string

const (
	// StorageKeyring uses the OS secure store.
	StorageKeyring StorageBackend = "keyring"
	// StorageRedis uses a Redis keyspace.
	StorageRedis StorageBackend = "redis"
	// StoragePostgres uses the credentials and preferences tables.
	StoragePostgres StorageBackend = "postgres"
	// StorageMemory keeps everything in process memory.
	StorageMemory StorageBackend = "memory"
)

// ValidStorageBackends returns all valid storage backend names.
func ValidStorageBackends() []StorageBackend {
	return []StorageBackend{StorageKeyring, StorageRedis, StoragePostgres, StorageMemory}
}

// UnmarshalText implements encoding.TextUnmarshaler for StorageBackend.
func (b *StorageBackend) UnmarshalText(text []byte) error {
	v := StorageBackend(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case StorageKeyring, StorageRedis, StoragePostgres, StorageMemory:
		*b = v
		return nil
	default:
		return fmt.Errorf("invalid StorageBackend: %q (valid options: keyring, redis, postgres, memory)", v)
	}
}

// StorageConfig configures the credential and preference stores.
type StorageConfig struct {
	Backend        StorageBackend `env:"STORAGE_BACKEND"         envDefault:"keyring"`
	KeyringService string         `env:"STORAGE_KEYRING_SERVICE" envDefault:"ledgerly"`
	RedisPrefix    string         `env:"STORAGE_REDIS_PREFIX"    envDefault:"ledgerly:"`
	// Scope partitions Postgres rows so several profiles can share one database.
	Scope string `env:"STORAGE_SCOPE" envDefault:"default"`
	// PersistTimeout bounds each background preference write.
	PersistTimeout time.Duration `env:"STORAGE_PERSIST_TIMEOUT" envDefault:"5s"`
	// EncryptionKey seals tokens written to redis or postgres. Hex (64 chars) or a passphrase.
	EncryptionKey string `env:"STORAGE_ENCRYPTION_KEY"`
}

// Sanitize fills blank names with defaults.
func (c *StorageConfig) Sanitize() {
	if c.KeyringService = strings.TrimSpace(c.KeyringService); c.KeyringService == "" {
		c.KeyringService = "ledgerly"
	}
	if c.Scope = strings.TrimSpace(c.Scope); c.Scope == "" {
		c.Scope = "default"
	}
	c.EncryptionKey = strings.TrimSpace(c.EncryptionKey)
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 5 * time.Second
	}
}
