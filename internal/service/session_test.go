package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/ledgerly/internal/domain/auth"
	apperrors "github.com/target/ledgerly/internal/errors"
	mockauth "github.com/target/ledgerly/internal/mocks/auth"
	"github.com/target/ledgerly/internal/observability/notify"
	"github.com/target/ledgerly/internal/ports"
)

type sessionFixture struct {
	api   *mockauth.MockAuthAPI
	creds *mockauth.MemoryStore
	prefs *mockauth.MemoryStore
	m     *SessionManager
}

func newSessionFixture(t *testing.T, creds map[string]string) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		api:   mockauth.NewMockAuthAPI(),
		creds: mockauth.NewMemoryStore(creds),
		prefs: mockauth.NewMemoryStore(nil),
	}
	m, err := NewSessionManager(SessionManagerOptions{
		API:         f.api,
		Credentials: f.creds,
		Preferences: f.prefs,
	})
	require.NoError(t, err)
	f.m = m
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Close(ctx)
	})
	return f
}

func storedTokens() map[string]string {
	return map[string]string{
		ports.KeyAccessToken:  "old-access",
		ports.KeyRefreshToken: "old-refresh",
		ports.KeyUsername:     "sam",
	}
}

func rejected(status int) error {
	return apperrors.Rejected("/test", status)
}

func TestNewSessionManager_RequiresDependencies(t *testing.T) {
	_, err := NewSessionManager(SessionManagerOptions{Credentials: mockauth.NewMemoryStore(nil)})
	require.Error(t, err)
	_, err = NewSessionManager(SessionManagerOptions{API: mockauth.NewMockAuthAPI()})
	require.Error(t, err)
}

func TestCheckAuthState_NoTokensMakesNoNetworkCalls(t *testing.T) {
	f := newSessionFixture(t, map[string]string{ports.KeyUsername: "sam"})

	snap := f.m.CheckAuthState(context.Background())

	assert.Equal(t, domainauth.StatusUnauthenticated, snap.Status)
	assert.Equal(t, "sam", snap.Username)
	assert.True(t, snap.Ready)
	assert.Equal(t, 0, f.api.TotalCalls())
	for _, key := range []string{ports.KeyAccessToken, ports.KeyRefreshToken, ports.KeyUsername} {
		assert.LessOrEqual(t, f.creds.Reads(key), 1, key)
	}
}

func TestCheckAuthState_ValidTokenSkipsRefresh(t *testing.T) {
	f := newSessionFixture(t, storedTokens())

	snap := f.m.CheckAuthState(context.Background())

	assert.Equal(t, domainauth.StatusAuthenticated, snap.Status)
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "mockuser", snap.Username)
	assert.Equal(t, "Mock User", snap.Profile.Name)
	assert.Equal(t, domainauth.ErrorNone, snap.LastError)
	assert.Equal(t, 1, f.api.Calls(mockauth.MethodValidate))
	assert.Equal(t, 0, f.api.Calls(mockauth.MethodRefresh))
	assert.Equal(t, 1, f.api.Calls(mockauth.MethodFetchProfile))
}

func TestCheckAuthState_InvalidTokenRefreshes(t *testing.T) {
	f := newSessionFixture(t, storedTokens())
	f.api.ValidateFunc = func(context.Context, string) error { return rejected(http.StatusUnauthorized) }
	var profileToken string
	f.api.FetchProfileFunc = func(_ context.Context, tok string) (domainauth.Identity, error) {
		profileToken = tok
		return f.api.DefaultUser, nil
	}

	snap := f.m.CheckAuthState(context.Background())

	assert.Equal(t, domainauth.StatusAuthenticated, snap.Status)
	assert.Equal(t, 1, f.api.Calls(mockauth.MethodValidate))
	assert.Equal(t, 1, f.api.Calls(mockauth.MethodRefresh))

	access, _ := f.creds.Value(ports.KeyAccessToken)
	refresh, _ := f.creds.Value(ports.KeyRefreshToken)
	assert.NotEqual(t, "old-access", access)
	assert.NotEqual(t, "old-refresh", refresh)
	assert.Equal(t, access, profileToken)

	tok, err := f.m.TokenSource().Token()
	require.NoError(t, err)
	assert.Equal(t, access, tok.AccessToken)
}

func TestCheckAuthState_RefreshRejectedClearsCredentials(t *testing.T) {
	f := newSessionFixture(t, storedTokens())
	f.api.ValidateFunc = func(context.Context, string) error { return rejected(http.StatusUnauthorized) }
	f.api.RefreshFunc = func(context.Context, string) (domainauth.TokenPair, error) {
		return domainauth.TokenPair{}, rejected(http.StatusUnauthorized)
	}

	snap := f.m.CheckAuthState(context.Background())

	assert.Equal(t, domainauth.StatusUnauthenticated, snap.Status)
	assert.Empty(t, snap.Username)
	for _, key := range []string{ports.KeyAccessToken, ports.KeyRefreshToken, ports.KeyUsername} {
		_, ok := f.creds.Value(key)
		assert.False(t, ok, key)
	}
	assert.Equal(t, 0, f.api.Calls(mockauth.MethodFetchProfile))
}

func TestCheckAuthState_RefreshUnavailableKeepsCredentials(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "transport", err: apperrors.Transport(errors.New("connection refused"), "/auth/refresh")},
		{name: "server error", err: rejected(http.StatusBadGateway)},
		{name: "throttled", err: rejected(http.StatusTooManyRequests)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture(t, storedTokens())
			f.api.ValidateFunc = func(context.Context, string) error { return rejected(http.StatusUnauthorized) }
			f.api.RefreshFunc = func(context.Context, string) (domainauth.TokenPair, error) {
				return domainauth.TokenPair{}, tt.err
			}

			snap := f.m.CheckAuthState(context.Background())

			assert.Equal(t, domainauth.StatusError, snap.Status)
			assert.Equal(t, domainauth.ErrorAuthCheckFailed, snap.LastError)
			assert.Equal(t, "sam", snap.Username)
			v, ok := f.creds.Value(ports.KeyRefreshToken)
			assert.True(t, ok)
			assert.Equal(t, "old-refresh", v)
			assert.LessOrEqual(t, f.api.TotalCalls(), 3)
		})
	}
}

func TestCheckAuthState_RefreshStorageFailure(t *testing.T) {
	f := newSessionFixture(t, storedTokens())
	f.api.ValidateFunc = func(context.Context, string) error { return rejected(http.StatusUnauthorized) }
	f.creds.FailSet(ports.KeyAccessToken, errors.New("disk full"))

	snap := f.m.CheckAuthState(context.Background())

	assert.Equal(t, domainauth.StatusError, snap.Status)
	assert.Equal(t, domainauth.ErrorAuthCheckFailed, snap.LastError)
	assert.Equal(t, 0, f.api.Calls(mockauth.MethodFetchProfile))
}

func TestCheckAuthState_ProfileFailure(t *testing.T) {
	f := newSessionFixture(t, storedTokens())
	f.api.FetchProfileFunc = func(context.Context, string) (domainauth.Identity, error) {
		return domainauth.Identity{}, apperrors.Transport(errors.New("timeout"), "/users/me")
	}

	snap := f.m.CheckAuthState(context.Background())

	assert.Equal(t, domainauth.StatusError, snap.Status)
	assert.Equal(t, domainauth.ErrorAuthCheckFailed, snap.LastError)
}

func TestCheckAuthState_StoreReadFailure(t *testing.T) {
	f := newSessionFixture(t, storedTokens())
	f.creds.FailGet(ports.KeyRefreshToken, errors.New("keychain locked"))

	snap := f.m.CheckAuthState(context.Background())

	assert.Equal(t, domainauth.StatusError, snap.Status)
	assert.Equal(t, domainauth.ErrorAuthCheckFailed, snap.LastError)
	assert.Equal(t, 0, f.api.TotalCalls())
}

func TestCheckAuthState_RunsOnce(t *testing.T) {
	f := newSessionFixture(t, storedTokens())

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.m.CheckAuthState(context.Background())
		}()
	}
	wg.Wait()
	f.m.CheckAuthState(context.Background())

	assert.Equal(t, 1, f.api.Calls(mockauth.MethodValidate))
	assert.Equal(t, 1, f.creds.Reads(ports.KeyAccessToken))
}

func TestCheckAuthState_RestoresPreferences(t *testing.T) {
	f := newSessionFixture(t, storedTokens())
	require.NoError(t, f.prefs.Set(context.Background(), ports.PrefTheme, "dark"))
	require.NoError(t, f.prefs.Set(context.Background(), ports.PrefProfileImage, "file:///me.png"))

	snap := f.m.CheckAuthState(context.Background())

	assert.Equal(t, domainauth.ThemeDark, snap.Theme)
	assert.True(t, snap.IsDarkMode)
	assert.Equal(t, "file:///me.png", snap.Profile.ProfileImage)
}

func TestLoginLogout_RoundTrip(t *testing.T) {
	f := newSessionFixture(t, nil)
	ctx := context.Background()
	f.m.CheckAuthState(ctx)

	require.NoError(t, f.m.Login(ctx, LoginInput{Username: " sam ", Phone: "5551234", Code: "123456"}))

	snap := f.m.Snapshot()
	assert.Equal(t, domainauth.StatusAuthenticated, snap.Status)
	assert.Equal(t, "sam", snap.Username)
	assert.Equal(t, "5551234", snap.Profile.Phone)
	for _, key := range []string{ports.KeyAccessToken, ports.KeyRefreshToken, ports.KeyUsername} {
		_, ok := f.creds.Value(key)
		assert.True(t, ok, key)
	}

	require.NoError(t, f.m.Logout(ctx))
	snap = f.m.Snapshot()
	assert.Equal(t, domainauth.StatusUnauthenticated, snap.Status)
	assert.Empty(t, snap.Username)
	for _, key := range []string{ports.KeyAccessToken, ports.KeyRefreshToken, ports.KeyUsername} {
		_, ok := f.creds.Value(key)
		assert.False(t, ok, key)
	}

	require.NoError(t, f.m.Logout(ctx))
	assert.Equal(t, domainauth.StatusUnauthenticated, f.m.Snapshot().Status)
}

func TestLogin_ValidationMakesNoNetworkCall(t *testing.T) {
	f := newSessionFixture(t, nil)
	ctx := context.Background()
	f.m.CheckAuthState(ctx)

	err := f.m.Login(ctx, LoginInput{Username: "  ", Phone: "555", Code: "1"})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "username", apperrors.GetField(err))
	assert.Equal(t, 0, f.api.TotalCalls())
	snap := f.m.Snapshot()
	assert.Equal(t, domainauth.ErrorLoginFailed, snap.LastError)
	assert.Equal(t, domainauth.StatusUnauthenticated, snap.Status)
}

func TestLogin_RejectedKeepsStatus(t *testing.T) {
	f := newSessionFixture(t, nil)
	ctx := context.Background()
	f.m.CheckAuthState(ctx)
	f.api.IssueTokenFunc = func(context.Context, domainauth.Credentials) (domainauth.TokenPair, error) {
		return domainauth.TokenPair{}, rejected(http.StatusUnauthorized)
	}

	err := f.m.Login(ctx, LoginInput{Username: "sam", Phone: "555", Code: "000"})

	require.Error(t, err)
	assert.True(t, apperrors.IsAuthRejected(err))
	snap := f.m.Snapshot()
	assert.Equal(t, domainauth.StatusUnauthenticated, snap.Status)
	assert.Equal(t, domainauth.ErrorLoginFailed, snap.LastError)
}

func TestLogin_PartialPersistIsCleanedUp(t *testing.T) {
	f := newSessionFixture(t, nil)
	ctx := context.Background()
	f.m.CheckAuthState(ctx)
	f.creds.FailSet(ports.KeyRefreshToken, errors.New("write failed"))

	err := f.m.Login(ctx, LoginInput{Username: "sam", Phone: "555", Code: "1"})

	require.Error(t, err)
	_, ok := f.creds.Value(ports.KeyAccessToken)
	assert.False(t, ok)
	assert.Equal(t, 1, f.creds.Deletes(ports.KeyAccessToken))
	assert.Equal(t, domainauth.StatusUnauthenticated, f.m.Snapshot().Status)
	assert.Equal(t, domainauth.ErrorLoginFailed, f.m.Snapshot().LastError)
}

func TestLogin_UsernamePersistFailureIsNotFatal(t *testing.T) {
	f := newSessionFixture(t, nil)
	ctx := context.Background()
	f.m.CheckAuthState(ctx)
	f.creds.FailSet(ports.KeyUsername, errors.New("write failed"))

	require.NoError(t, f.m.Login(ctx, LoginInput{Username: "sam", Phone: "555", Code: "1"}))
	assert.Equal(t, domainauth.StatusAuthenticated, f.m.Snapshot().Status)
}

func TestLogin_WaitsForBootstrap(t *testing.T) {
	f := newSessionFixture(t, storedTokens())
	release := make(chan struct{})
	f.api.ValidateFunc = func(ctx context.Context, _ string) error {
		<-release
		return nil
	}
	f.m.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := f.m.Login(ctx, LoginInput{Username: "sam", Phone: "555", Code: "1"})

	require.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, 0, f.api.Calls(mockauth.MethodIssueToken))

	close(release)
	<-f.m.Ready()
	assert.Equal(t, domainauth.StatusAuthenticated, f.m.Snapshot().Status)
}

func TestLogin_StartsBootstrapWhenNeeded(t *testing.T) {
	f := newSessionFixture(t, nil)

	require.NoError(t, f.m.Login(context.Background(), LoginInput{Username: "sam", Phone: "555", Code: "1"}))
	assert.Equal(t, domainauth.StatusAuthenticated, f.m.Snapshot().Status)
	assert.Equal(t, 1, f.creds.Reads(ports.KeyAccessToken))
}

func TestLogout_DeleteFailuresAreLogged(t *testing.T) {
	f := newSessionFixture(t, storedTokens())
	ctx := context.Background()
	f.m.CheckAuthState(ctx)
	f.creds.FailDelete(ports.KeyAccessToken, errors.New("locked"))

	require.NoError(t, f.m.Logout(ctx))

	assert.Equal(t, domainauth.StatusUnauthenticated, f.m.Snapshot().Status)
	assert.Equal(t, 1, f.creds.Deletes(ports.KeyRefreshToken))
	assert.Equal(t, 1, f.creds.Deletes(ports.KeyUsername))
}

func TestLogout_PreservesTheme(t *testing.T) {
	f := newSessionFixture(t, storedTokens())
	ctx := context.Background()
	f.m.CheckAuthState(ctx)
	f.m.ToggleTheme()

	require.NoError(t, f.m.Logout(ctx))
	assert.Equal(t, domainauth.ThemeDark, f.m.Snapshot().Theme)
}

func TestRequestVerificationCode(t *testing.T) {
	f := newSessionFixture(t, nil)
	ctx := context.Background()
	f.m.CheckAuthState(ctx)

	_, err := f.m.RequestVerificationCode(ctx, " ")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, 0, f.api.TotalCalls())

	f.api.RequestCodeFunc = func(context.Context, string) (domainauth.CodeReceipt, error) {
		return nil, apperrors.Transport(errors.New("offline"), "/auth/request-code")
	}
	_, err = f.m.RequestVerificationCode(ctx, "sam")
	require.Error(t, err)
	snap := f.m.Snapshot()
	assert.Equal(t, domainauth.ErrorCodeRequestFailed, snap.LastError)
	assert.Equal(t, domainauth.StatusUnauthenticated, snap.Status)

	f.api.RequestCodeFunc = nil
	receipt, err := f.m.RequestVerificationCode(ctx, "sam")
	require.NoError(t, err)
	assert.Equal(t, "code sent", receipt["message"])
	assert.Equal(t, domainauth.ErrorNone, f.m.Snapshot().LastError)
}

func TestRefreshAccessToken_ConcurrentCallsShareOneRequest(t *testing.T) {
	f := newSessionFixture(t, nil)
	release := make(chan struct{})
	f.api.RefreshFunc = func(context.Context, string) (domainauth.TokenPair, error) {
		<-release
		return domainauth.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil
	}

	const callers = 8
	results := make([]domainauth.RefreshResult, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.m.RefreshAccessToken(context.Background(), "r1")
		}()
	}

	require.Eventually(t, func() bool { return f.api.Calls(mockauth.MethodRefresh) == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, f.api.Calls(mockauth.MethodRefresh))
	for _, res := range results {
		assert.True(t, res.OK())
		assert.Equal(t, "a2", res.Tokens.AccessToken)
	}
	v, _ := f.creds.Value(ports.KeyRefreshToken)
	assert.Equal(t, "r2", v)
}

func TestRefreshAccessToken_EmptyTokenIsRejected(t *testing.T) {
	f := newSessionFixture(t, nil)

	res := f.m.RefreshAccessToken(context.Background(), "")

	assert.Equal(t, domainauth.RefreshRejected, res.Outcome)
	assert.Equal(t, 0, f.api.TotalCalls())
}

func TestRefreshOutcomeFor(t *testing.T) {
	tests := []struct {
		err  error
		want domainauth.RefreshOutcome
	}{
		{err: rejected(http.StatusUnauthorized), want: domainauth.RefreshRejected},
		{err: rejected(http.StatusForbidden), want: domainauth.RefreshRejected},
		{err: rejected(http.StatusRequestTimeout), want: domainauth.RefreshTransportFailure},
		{err: rejected(http.StatusServiceUnavailable), want: domainauth.RefreshTransportFailure},
		{err: apperrors.Transport(errors.New("eof"), "/auth/refresh"), want: domainauth.RefreshTransportFailure},
		{err: errors.New("decode"), want: domainauth.RefreshTransportFailure},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, refreshOutcomeFor(tt.err), tt.err.Error())
	}
}

func TestValidateAccessToken_FailsClosed(t *testing.T) {
	f := newSessionFixture(t, nil)
	f.api.ValidateFunc = func(context.Context, string) error {
		return apperrors.Transport(context.DeadlineExceeded, "/auth/validate-access")
	}

	assert.False(t, f.m.ValidateAccessToken(context.Background(), "tok"))
	assert.False(t, f.m.ValidateAccessToken(context.Background(), ""))
	assert.Equal(t, 1, f.api.Calls(mockauth.MethodValidate))
}

func TestToggleTheme_TwiceRestoresAndWritesTwice(t *testing.T) {
	f := newSessionFixture(t, nil)
	f.m.CheckAuthState(context.Background())
	original := f.m.Snapshot().Theme

	assert.Equal(t, original.Toggle(), f.m.ToggleTheme())
	assert.Equal(t, original, f.m.ToggleTheme())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.m.Close(ctx))

	assert.Equal(t, original, f.m.Snapshot().Theme)
	assert.Equal(t, 2, f.prefs.Writes(ports.PrefTheme))
	v, _ := f.prefs.Value(ports.PrefTheme)
	assert.Equal(t, string(original), v)
}

func TestProfileImage_PersistsInOrder(t *testing.T) {
	f := newSessionFixture(t, storedTokens())
	f.m.CheckAuthState(context.Background())

	f.m.UpdateProfileImage("file:///a.png")
	f.m.UpdateProfileImage("file:///b.png")
	assert.Equal(t, "file:///b.png", f.m.Snapshot().Profile.ProfileImage)
	f.m.RemoveProfileImage()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.m.Close(ctx))

	assert.Empty(t, f.m.Snapshot().Profile.ProfileImage)
	assert.Equal(t, 3, f.prefs.Writes(ports.PrefProfileImage))
	v, ok := f.prefs.Value(ports.PrefProfileImage)
	assert.True(t, ok)
	assert.Empty(t, v)
}

func TestPreferenceWriteFailureIsNotFatal(t *testing.T) {
	f := newSessionFixture(t, nil)
	f.prefs.FailSet(ports.PrefTheme, errors.New("read-only"))

	assert.Equal(t, domainauth.ThemeDark, f.m.ToggleTheme())
	require.NoError(t, f.m.Close(context.Background()))
	assert.Equal(t, domainauth.ThemeDark, f.m.Snapshot().Theme)
}

func TestHTTPClient_RefreshesOnUnauthorized(t *testing.T) {
	f := newSessionFixture(t, storedTokens())
	f.api.RefreshFunc = func(context.Context, string) (domainauth.TokenPair, error) {
		return domainauth.TokenPair{AccessToken: "fresh-access", RefreshToken: "fresh-refresh"}, nil
	}
	f.m.CheckAuthState(context.Background())

	var seen []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer fresh-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := f.m.HTTPClient(srv.Client())
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/groups", strings.NewReader(`{"name":"Trip"}`))
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"Bearer old-access", "Bearer fresh-access"}, seen)
	assert.Equal(t, 1, f.api.Calls(mockauth.MethodRefresh))
	v, _ := f.creds.Value(ports.KeyAccessToken)
	assert.Equal(t, "fresh-access", v)
}

func TestHTTPClient_RejectedRefreshSignsOut(t *testing.T) {
	f := newSessionFixture(t, storedTokens())
	f.m.CheckAuthState(context.Background())
	f.api.RefreshFunc = func(context.Context, string) (domainauth.TokenPair, error) {
		return domainauth.TokenPair{}, rejected(http.StatusUnauthorized)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	resp, err := f.m.HTTPClient(nil).Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, domainauth.StatusUnauthenticated, f.m.Snapshot().Status)
	_, ok := f.creds.Value(ports.KeyRefreshToken)
	assert.False(t, ok)
}

func TestTokenSource_RequiresAuthentication(t *testing.T) {
	f := newSessionFixture(t, nil)
	f.m.CheckAuthState(context.Background())

	_, err := f.m.TokenSource().Token()
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = f.m.HTTPClient(nil).Get("http://127.0.0.1:1/")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestSessionAlerts(t *testing.T) {
	tests := []struct {
		name     string
		refresh  error
		wantKind string
		wantUser string
	}{
		{name: "refresh rejected", refresh: rejected(http.StatusUnauthorized), wantKind: notify.KindForcedSignOut, wantUser: "sam"},
		{name: "refresh unavailable", refresh: rejected(http.StatusBadGateway), wantKind: notify.KindAuthCheckFailed, wantUser: "sam"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				mu  sync.Mutex
				got []notify.SessionAlert
			)
			sink := notify.SinkFunc(func(_ context.Context, a notify.SessionAlert) error {
				mu.Lock()
				defer mu.Unlock()
				got = append(got, a)
				return nil
			})
			api := mockauth.NewMockAuthAPI()
			api.ValidateFunc = func(context.Context, string) error { return rejected(http.StatusUnauthorized) }
			api.RefreshFunc = func(context.Context, string) (domainauth.TokenPair, error) {
				return domainauth.TokenPair{}, tt.refresh
			}
			m, err := NewSessionManager(SessionManagerOptions{
				API:         api,
				Credentials: mockauth.NewMemoryStore(storedTokens()),
				Alerts:      sink,
			})
			require.NoError(t, err)

			m.CheckAuthState(context.Background())
			require.NoError(t, m.Close(context.Background()))

			mu.Lock()
			defer mu.Unlock()
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantKind, got[0].Kind)
			assert.Equal(t, tt.wantUser, got[0].Username)
			assert.Equal(t, "auth_rejected", got[0].ErrorClass)
			assert.NotEmpty(t, got[0].Error)
		})
	}
}

func TestSessionAlerts_NoneOnCleanBootstrap(t *testing.T) {
	var calls int
	api := mockauth.NewMockAuthAPI()
	m, err := NewSessionManager(SessionManagerOptions{
		API:         api,
		Credentials: mockauth.NewMemoryStore(storedTokens()),
		Alerts: notify.SinkFunc(func(context.Context, notify.SessionAlert) error {
			calls++
			return nil
		}),
	})
	require.NoError(t, err)

	snap := m.CheckAuthState(context.Background())
	require.NoError(t, m.Close(context.Background()))
	assert.Equal(t, domainauth.StatusAuthenticated, snap.Status)
	assert.Equal(t, 0, calls)
}

// blockRefresh makes the next refresh wait until the returned release func is called.
func blockRefresh(f *sessionFixture, pair domainauth.TokenPair) (started <-chan struct{}, release func()) {
	startedCh := make(chan struct{})
	releaseCh := make(chan struct{})
	var once sync.Once
	f.api.RefreshFunc = func(context.Context, string) (domainauth.TokenPair, error) {
		once.Do(func() { close(startedCh) })
		<-releaseCh
		return pair, nil
	}
	return startedCh, func() { close(releaseCh) }
}

func TestHTTPClient_LogoutDuringRefreshKeepsCredentialsDeleted(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, storedTokens())
	f.m.CheckAuthState(ctx)
	require.Equal(t, domainauth.StatusAuthenticated, f.m.Snapshot().Status)
	started, release := blockRefresh(f, domainauth.TokenPair{AccessToken: "fresh-access", RefreshToken: "fresh-refresh"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	type result struct {
		status int
		err    error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := f.m.HTTPClient(nil).Get(srv.URL)
		if err != nil {
			done <- result{err: err}
			return
		}
		_ = resp.Body.Close()
		done <- result{status: resp.StatusCode}
	}()

	<-started
	require.NoError(t, f.m.Logout(ctx))
	release()
	res := <-done

	require.NoError(t, res.err)
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, domainauth.StatusUnauthenticated, f.m.Snapshot().Status)
	_, ok := f.creds.Value(ports.KeyAccessToken)
	assert.False(t, ok, "access token written back after logout")
	_, ok = f.creds.Value(ports.KeyRefreshToken)
	assert.False(t, ok, "refresh token written back after logout")
}

func TestRefreshAccessToken_LoginDuringRefreshKeepsLoginTokens(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, storedTokens())
	f.m.CheckAuthState(ctx)
	f.api.IssueTokenFunc = func(context.Context, domainauth.Credentials) (domainauth.TokenPair, error) {
		return domainauth.TokenPair{AccessToken: "login-access", RefreshToken: "login-refresh"}, nil
	}
	started, release := blockRefresh(f, domainauth.TokenPair{AccessToken: "stale-access", RefreshToken: "stale-refresh"})

	done := make(chan domainauth.RefreshResult, 1)
	go func() { done <- f.m.RefreshAccessToken(ctx, "old-refresh") }()

	<-started
	require.NoError(t, f.m.Login(ctx, LoginInput{Username: "alex", Phone: "5550199", Code: "123456"}))
	release()
	res := <-done

	assert.Equal(t, domainauth.RefreshSuperseded, res.Outcome)
	assert.False(t, res.OK())
	access, _ := f.creds.Value(ports.KeyAccessToken)
	refresh, _ := f.creds.Value(ports.KeyRefreshToken)
	assert.Equal(t, "login-access", access)
	assert.Equal(t, "login-refresh", refresh)
	snap := f.m.Snapshot()
	assert.Equal(t, domainauth.StatusAuthenticated, snap.Status)
	assert.Equal(t, "alex", snap.Username)
}

func TestClose_LaterPreferenceChangesStayInMemory(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, nil)
	f.m.CheckAuthState(ctx)
	require.NoError(t, f.m.Close(ctx))

	assert.Equal(t, domainauth.ThemeDark, f.m.ToggleTheme())
	f.m.UpdateProfileImage("file:///late.png")
	require.NoError(t, f.m.Close(ctx))

	assert.Equal(t, 0, f.prefs.Writes(ports.PrefTheme))
	assert.Equal(t, 0, f.prefs.Writes(ports.PrefProfileImage))
	assert.Equal(t, "file:///late.png", f.m.Snapshot().Profile.ProfileImage)
}
