package cryptoutil

import (
	"context"
	"errors"

	"github.com/target/ledgerly/internal/ports"
)

// Store wraps a CredentialStore so values are sealed at rest.
type Store struct {
	inner  ports.CredentialStore
	sealer Sealer
	// AllowPlaintext lets Get return values written before sealing was enabled.
	AllowPlaintext bool
}

var _ ports.CredentialStore = (*Store)(nil)

// NewStore wraps inner with sealer.
func NewStore(inner ports.CredentialStore, sealer Sealer) *Store {
	return &Store{inner: inner, sealer: sealer}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	raw, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	pt, err := s.sealer.Open(raw)
	if errors.Is(err, ErrNotSealed) && s.AllowPlaintext {
		return raw, nil
	}
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	sealed, err := s.sealer.Seal([]byte(value))
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, sealed)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}
