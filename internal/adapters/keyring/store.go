// Package keyring stores credentials in the operating system's secret service
// (macOS Keychain, Windows Credential Manager, Secret Service on Linux).
package keyring

import (
	"context"
	"errors"
	"strings"

	gokeyring "github.com/zalando/go-keyring"

	apperrors "github.com/target/ledgerly/internal/errors"
	"github.com/target/ledgerly/internal/ports"
)

// DefaultService is the keyring service name entries are filed under.
const DefaultService = "ledgerly"

// Store maps keys to keyring entries of a single service.
// The keyring API is synchronous; ctx is only checked before each call.
type Store struct {
	service string
}

var (
	_ ports.CredentialStore = (*Store)(nil)
	_ ports.PreferenceStore = (*Store)(nil)
)

// New returns a Store for service, falling back to DefaultService.
func New(service string) *Store {
	service = strings.TrimSpace(service)
	if service == "" {
		service = DefaultService
	}
	return &Store{service: service}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.FromContext(err)
	}
	v, err := gokeyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return "", ports.ErrNotFound
		}
		return "", apperrors.Storage(err, "keyring get", key)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.FromContext(err)
	}
	if err := gokeyring.Set(s.service, key, value); err != nil {
		return apperrors.Storage(err, "keyring set", key)
	}
	return nil
}

// Delete removes key; a missing entry is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.FromContext(err)
	}
	if err := gokeyring.Delete(s.service, key); err != nil && !errors.Is(err, gokeyring.ErrNotFound) {
		return apperrors.Storage(err, "keyring delete", key)
	}
	return nil
}
