package auth

// Package auth contains simple hand-written test doubles for session ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"fmt"
	"sync"

	domainauth "github.com/target/ledgerly/internal/domain/auth"
	"github.com/target/ledgerly/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthAPI         = (*MockAuthAPI)(nil)
	_ ports.CredentialStore = (*MemoryStore)(nil)
	_ ports.PreferenceStore = (*MemoryStore)(nil)
)

// Method names accepted by MockAuthAPI.Calls.
const (
	MethodFetchProfile = "FetchProfile"
	MethodValidate     = "ValidateAccessToken"
	MethodRefresh      = "RefreshTokens"
	MethodIssueToken   = "IssueToken"
	MethodRequestCode  = "RequestCode"
)

// MockAuthAPI simulates the remote auth API and counts calls per method.
// Func fields override the default behavior.
type MockAuthAPI struct {
	FetchProfileFunc func(ctx context.Context, accessToken string) (domainauth.Identity, error)
	ValidateFunc     func(ctx context.Context, accessToken string) error
	RefreshFunc      func(ctx context.Context, refreshToken string) (domainauth.TokenPair, error)
	IssueTokenFunc   func(ctx context.Context, creds domainauth.Credentials) (domainauth.TokenPair, error)
	RequestCodeFunc  func(ctx context.Context, username string) (domainauth.CodeReceipt, error)

	DefaultUser domainauth.Identity

	mu    sync.Mutex
	calls map[string]int
	seq   int
}

// NewMockAuthAPI creates a MockAuthAPI with sensible defaults.
func NewMockAuthAPI() *MockAuthAPI {
	return &MockAuthAPI{
		DefaultUser: domainauth.Identity{
			Username: "mockuser",
			Profile: domainauth.Profile{
				Name:  "Mock User",
				Phone: "5550100",
			},
		},
	}
}

// Calls returns how many times method was invoked.
func (m *MockAuthAPI) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (m *MockAuthAPI) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func (m *MockAuthAPI) record(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
	m.seq++
	return m.seq
}

func (m *MockAuthAPI) FetchProfile(ctx context.Context, accessToken string) (domainauth.Identity, error) {
	m.record(MethodFetchProfile)
	if m.FetchProfileFunc != nil {
		return m.FetchProfileFunc(ctx, accessToken)
	}
	return m.DefaultUser, nil
}

func (m *MockAuthAPI) ValidateAccessToken(ctx context.Context, accessToken string) error {
	m.record(MethodValidate)
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, accessToken)
	}
	return nil
}

func (m *MockAuthAPI) RefreshTokens(ctx context.Context, refreshToken string) (domainauth.TokenPair, error) {
	n := m.record(MethodRefresh)
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return pair(n), nil
}

func (m *MockAuthAPI) IssueToken(ctx context.Context, creds domainauth.Credentials) (domainauth.TokenPair, error) {
	n := m.record(MethodIssueToken)
	if m.IssueTokenFunc != nil {
		return m.IssueTokenFunc(ctx, creds)
	}
	return pair(n), nil
}

func (m *MockAuthAPI) RequestCode(ctx context.Context, username string) (domainauth.CodeReceipt, error) {
	m.record(MethodRequestCode)
	if m.RequestCodeFunc != nil {
		return m.RequestCodeFunc(ctx, username)
	}
	return domainauth.CodeReceipt{"message": "code sent"}, nil
}

func pair(n int) domainauth.TokenPair {
	return domainauth.TokenPair{
		AccessToken:  fmt.Sprintf("access-%d", n),
		RefreshToken: fmt.Sprintf("refresh-%d", n),
	}
}

// MemoryStore is an in-memory key/value store that counts reads and writes per key
// and can be told to fail specific operations.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string]string
	reads  map[string]int
	writes map[string]int
	dels   map[string]int

	// GetErr, SetErr and DeleteErr fail the matching operation for a key.
	GetErr    map[string]error
	SetErr    map[string]error
	DeleteErr map[string]error
}

// NewMemoryStore creates a store seeded with values.
func NewMemoryStore(values map[string]string) *MemoryStore {
	s := &MemoryStore{
		data:      make(map[string]string),
		reads:     make(map[string]int),
		writes:    make(map[string]int),
		dels:      make(map[string]int),
		GetErr:    make(map[string]error),
		SetErr:    make(map[string]error),
		DeleteErr: make(map[string]error),
	}
	for k, v := range values {
		s.data[k] = v
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[key]++
	if err := s.GetErr[key]; err != nil {
		return "", err
	}
	v, ok := s.data[key]
	if !ok {
		return "", ports.ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes[key]++
	if err := s.SetErr[key]; err != nil {
		return err
	}
	s.data[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dels[key]++
	if err := s.DeleteErr[key]; err != nil {
		return err
	}
	delete(s.data, key)
	return nil
}

// FailGet makes Get(key) return err.
func (s *MemoryStore) FailGet(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetErr[key] = err
}

// FailSet makes Set(key, _) return err.
func (s *MemoryStore) FailSet(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetErr[key] = err
}

// FailDelete makes Delete(key) return err.
func (s *MemoryStore) FailDelete(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeleteErr[key] = err
}

// Value returns the stored value and whether it exists.
func (s *MemoryStore) Value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Reads returns the number of Get calls for key.
func (s *MemoryStore) Reads(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[key]
}

// Writes returns the number of Set calls for key.
func (s *MemoryStore) Writes(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[key]
}

// Deletes returns the number of Delete calls for key.
func (s *MemoryStore) Deletes(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dels[key]
}
