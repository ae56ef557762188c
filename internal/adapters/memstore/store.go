// Package memstore provides an in-process key/value store for credentials and preferences.
package memstore

import (
	"context"
	"maps"
	"sync"

	"github.com/target/ledgerly/internal/ports"
)

// Store is a mutex-guarded map. Contents do not survive the process.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

var (
	_ ports.CredentialStore = (*Store)(nil)
	_ ports.PreferenceStore = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{data: make(map[string]string)}
}

// NewWithValues returns a store seeded with a copy of values.
func NewWithValues(values map[string]string) *Store {
	s := New()
	maps.Copy(s.data, values)
	return s
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", ports.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Len reports the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
