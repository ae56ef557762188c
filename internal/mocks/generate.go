// Package mocks provides gomock-generated mocks for session ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockCredentialStore(ctrl)
//	store.EXPECT().Get(gomock.Any(), ports.KeyAccessToken).Return("", ports.ErrNotFound)
package mocks

// Generate mocks for the credential and preference stores from internal/ports.
// CredentialStore: Get, Set, Delete. PreferenceStore: Get, Set.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=store_mock.go github.com/target/ledgerly/internal/ports CredentialStore,PreferenceStore
