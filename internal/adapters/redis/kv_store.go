package redis

// Package redis provides Redis-backed credential and preference stores.

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/target/ledgerly/internal/errors"
	"github.com/target/ledgerly/internal/ports"
)

// DefaultPrefix namespaces keys written by KVStore.
const DefaultPrefix = "ledgerly:"

// KVStore stores plain string values under a key prefix. Values never expire.
type KVStore struct {
	client redis.UniversalClient
	prefix string
}

var (
	_ ports.CredentialStore = (*KVStore)(nil)
	_ ports.PreferenceStore = (*KVStore)(nil)
)

// NewKVStore creates a Redis-backed store using DefaultPrefix.
func NewKVStore(client redis.UniversalClient) *KVStore {
	return NewKVStoreWithPrefix(client, DefaultPrefix)
}

// NewKVStoreWithPrefix creates a Redis-backed store with a custom key prefix.
func NewKVStoreWithPrefix(client redis.UniversalClient, prefix string) *KVStore {
	return &KVStore{
		client: client,
		prefix: prefix,
	}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ports.ErrNotFound
	}

	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ports.ErrNotFound
		}
		return "", apperrors.Storage(err, "redis get", key)
	}
	return val, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return apperrors.Validation("key cannot be empty")
	}
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return apperrors.Storage(err, "redis set", key)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return apperrors.Storage(err, "redis del", key)
	}
	return nil
}
