package ports

// Package ports defines interfaces (hexagonal ports) for session-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"

	domainauth "github.com/target/ledgerly/internal/domain/auth"
)

// ErrNotFound is returned by stores when a key has no value.
var ErrNotFound = errors.New("key not found")

// Persisted credential keys.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUsername     = "username"
)

// Preference keys.
const (
	PrefTheme        = "userTheme"
	PrefProfileImage = "profileImage"
	PrefFriends      = "friends"
	PrefGroups       = "groups"
)

// CredentialStore is the secure key-value store for tokens and the username.
// Each operation is atomic and may fail.
type CredentialStore interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete of an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// PreferenceStore holds non-sensitive device preferences.
type PreferenceStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// AuthAPI is the remote token service consumed by the session manager.
type AuthAPI interface {
	// FetchProfile loads the current user with a bearer access token.
	FetchProfile(ctx context.Context, accessToken string) (domainauth.Identity, error)

	// ValidateAccessToken returns nil when the token is accepted.
	ValidateAccessToken(ctx context.Context, accessToken string) error

	// RefreshTokens mints a new token pair from a refresh token.
	RefreshTokens(ctx context.Context, refreshToken string) (domainauth.TokenPair, error)

	// IssueToken exchanges a verification code for a token pair.
	IssueToken(ctx context.Context, creds domainauth.Credentials) (domainauth.TokenPair, error)

	// RequestCode asks the API to send a one-time code for username.
	RequestCode(ctx context.Context, username string) (domainauth.CodeReceipt, error)
}
