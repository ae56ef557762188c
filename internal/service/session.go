package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	domainauth "github.com/target/ledgerly/internal/domain/auth"
	apperrors "github.com/target/ledgerly/internal/errors"
	obserrors "github.com/target/ledgerly/internal/observability/errors"
	"github.com/target/ledgerly/internal/observability/metrics"
	"github.com/target/ledgerly/internal/observability/notify"
	"github.com/target/ledgerly/internal/observability/statsd"
	"github.com/target/ledgerly/internal/ports"
)

// ErrNotReady is returned when a caller gives up waiting for the bootstrap check.
var ErrNotReady = errors.New("session is not ready")

// ErrNotAuthenticated is returned by the token source when no session is active.
var ErrNotAuthenticated = errors.New("session is not authenticated")

var errRefreshSuperseded = errors.New("session changed during token refresh")

const defaultPersistTimeout = 5 * time.Second

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	API         ports.AuthAPI
	Credentials ports.CredentialStore
	// Preferences is optional; without it theme and profile image live in memory only.
	Preferences ports.PreferenceStore
	Logger      *slog.Logger
	Metrics     statsd.Sink
	// Alerts receives forced sign-out and failed auth check notifications. Optional.
	Alerts notify.Sink
	// PersistTimeout bounds each detached preference write. Defaults to 5s.
	PersistTimeout time.Duration
}

// LoginInput carries the verification-code login form.
type LoginInput struct {
	Username string
	Phone    string
	Code     string
}

func (in LoginInput) normalized() LoginInput {
	return LoginInput{
		Username: strings.TrimSpace(in.Username),
		Phone:    strings.TrimSpace(in.Phone),
		Code:     strings.TrimSpace(in.Code),
	}
}

// Validate reports the first missing field.
func (in LoginInput) Validate() error {
	switch {
	case in.Username == "":
		return apperrors.ValidationField("username", "username is required")
	case in.Phone == "":
		return apperrors.ValidationField("phone", "phone number is required")
	case in.Code == "":
		return apperrors.ValidationField("code", "verification code is required")
	default:
		return nil
	}
}

// SessionManager owns the client session: it restores persisted credentials,
// validates or refreshes them, and drives login and logout.
//
// Login and Logout wait for the bootstrap check and are serialized with each other.
// Theme and profile image writes are applied in memory immediately and persisted
// in the background in call order; Close waits for them.
type SessionManager struct {
	api            ports.AuthAPI
	creds          ports.CredentialStore
	prefs          ports.PreferenceStore
	logger         *slog.Logger
	metrics        statsd.Sink
	alerts         notify.Sink
	persistTimeout time.Duration

	mu    sync.RWMutex
	state domainauth.Session

	opMu      sync.Mutex
	bootOnce  sync.Once
	startOnce sync.Once
	ready     chan struct{}

	refreshGroup singleflight.Group

	persistMu     sync.Mutex
	persistTail   chan struct{}
	persistWG     sync.WaitGroup
	persistClosed bool
}

// NewSessionManager constructs a SessionManager in the Initializing state.
func NewSessionManager(opts SessionManagerOptions) (*SessionManager, error) {
	if opts.API == nil {
		return nil, errors.New("auth api is required")
	}
	if opts.Credentials == nil {
		return nil, errors.New("credential store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.PersistTimeout
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	return &SessionManager{
		api:            opts.API,
		creds:          opts.Credentials,
		prefs:          opts.Preferences,
		logger:         logger.With("component", "session"),
		metrics:        opts.Metrics,
		alerts:         opts.Alerts,
		persistTimeout: timeout,
		state:          domainauth.NewSession(),
		ready:          make(chan struct{}),
	}, nil
}

// Start runs the bootstrap check in the background. Use Ready to wait for it.
func (m *SessionManager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		go m.CheckAuthState(ctx)
	})
}

// Ready is closed once the bootstrap check has reached a terminal status.
func (m *SessionManager) Ready() <-chan struct{} {
	return m.ready
}

// Snapshot returns the presentation view of the session.
func (m *SessionManager) Snapshot() domainauth.Snapshot {
	m.mu.RLock()
	snap := m.state.Snapshot()
	m.mu.RUnlock()
	snap.Ready = m.isReady()
	return snap
}

func (m *SessionManager) isReady() bool {
	select {
	case <-m.ready:
		return true
	default:
		return false
	}
}

// CheckAuthState restores and verifies persisted credentials. It runs once per
// manager; later calls wait for the first run and return its result.
func (m *SessionManager) CheckAuthState(ctx context.Context) domainauth.Snapshot {
	m.bootOnce.Do(func() {
		defer close(m.ready)
		start := time.Now()
		m.bootstrap(ctx)
		status := m.Snapshot().Status
		metrics.EmitBootstrap(m.metrics, string(status), time.Since(start))
		m.logger.InfoContext(ctx, "auth state checked", "status", status, "duration", time.Since(start))
	})
	return m.Snapshot()
}

type storedState struct {
	access       string
	refresh      string
	username     string
	theme        domainauth.Theme
	profileImage string
}

func (m *SessionManager) bootstrap(ctx context.Context) {
	stored, err := m.readStoredState(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to read stored credentials", "error", err)
		m.alert(notify.KindAuthCheckFailed, "bootstrap", "", err)
		m.transition("bootstrap", func(s *domainauth.Session) {
			s.Status = domainauth.StatusError
			s.LastError = domainauth.ErrorAuthCheckFailed
		})
		return
	}

	if stored.access == "" || stored.refresh == "" {
		m.transition("bootstrap", func(s *domainauth.Session) {
			*s = domainauth.Session{
				Status:   domainauth.StatusUnauthenticated,
				Username: stored.username,
				Theme:    stored.theme,
			}
		})
		return
	}

	pair := domainauth.TokenPair{AccessToken: stored.access, RefreshToken: stored.refresh}
	if !m.ValidateAccessToken(ctx, stored.access) {
		res := m.RefreshAccessToken(ctx, stored.refresh)
		switch res.Outcome {
		case domainauth.RefreshSucceeded:
			pair = res.Tokens
		case domainauth.RefreshRejected:
			m.logger.InfoContext(ctx, "stored refresh token rejected; signing out")
			m.mu.Lock()
			m.state.Theme = stored.theme
			m.mu.Unlock()
			m.logout(ctx, "refresh_rejected")
			m.alert(notify.KindForcedSignOut, "refresh_rejected", stored.username, res.Err)
			return
		default:
			m.logger.WarnContext(ctx, "token refresh failed during auth check",
				"outcome", res.Outcome.String(), "error", res.Err)
			m.alert(notify.KindAuthCheckFailed, "refresh_"+res.Outcome.String(), stored.username, res.Err)
			m.transition("bootstrap", func(s *domainauth.Session) {
				s.Status = domainauth.StatusError
				s.Username = stored.username
				s.Theme = stored.theme
				s.LastError = domainauth.ErrorAuthCheckFailed
			})
			return
		}
	}

	m.loadUserData(ctx, pair, stored)
}

// readStoredState reads the three credential keys and the preferences concurrently,
// one read per key. Preference failures are logged and ignored.
func (m *SessionManager) readStoredState(ctx context.Context) (storedState, error) {
	var st storedState
	var themeRaw string

	g, gctx := errgroup.WithContext(ctx)
	readCred := func(key string, dst *string) func() error {
		return func() error {
			v, err := m.creds.Get(gctx, key)
			switch {
			case errors.Is(err, ports.ErrNotFound):
				return nil
			case err != nil:
				return fmt.Errorf("read %s: %w", key, err)
			}
			*dst = v
			return nil
		}
	}
	readPref := func(key string, dst *string) func() error {
		return func() error {
			if m.prefs == nil {
				return nil
			}
			v, err := m.prefs.Get(gctx, key)
			if err != nil {
				if !errors.Is(err, ports.ErrNotFound) {
					m.logger.WarnContext(ctx, "failed to read preference", "key", key, "error", err)
				}
				return nil
			}
			*dst = v
			return nil
		}
	}

	g.Go(readCred(ports.KeyAccessToken, &st.access))
	g.Go(readCred(ports.KeyRefreshToken, &st.refresh))
	g.Go(readCred(ports.KeyUsername, &st.username))
	g.Go(readPref(ports.PrefTheme, &themeRaw))
	g.Go(readPref(ports.PrefProfileImage, &st.profileImage))

	err := g.Wait()
	st.theme = domainauth.ParseTheme(themeRaw)
	return st, err
}

func (m *SessionManager) loadUserData(ctx context.Context, pair domainauth.TokenPair, stored storedState) {
	identity, err := m.api.FetchProfile(ctx, pair.AccessToken)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to load user profile", "error", err)
		m.alert(notify.KindAuthCheckFailed, "load_profile", stored.username, err)
		m.transition("bootstrap", func(s *domainauth.Session) {
			s.Status = domainauth.StatusError
			s.Username = stored.username
			s.Theme = stored.theme
			s.LastError = domainauth.ErrorAuthCheckFailed
		})
		return
	}

	username := identity.Username
	if username == "" {
		username = stored.username
	}
	profile := identity.Profile
	if stored.profileImage != "" {
		profile.ProfileImage = stored.profileImage
	}

	m.transition("bootstrap", func(s *domainauth.Session) {
		*s = domainauth.Session{
			Status:       domainauth.StatusAuthenticated,
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			Username:     username,
			Profile:      profile,
			Theme:        stored.theme,
		}
	})
}

// ValidateAccessToken asks the API whether token is still valid. Any failure counts as invalid.
func (m *SessionManager) ValidateAccessToken(ctx context.Context, token string) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}
	if err := m.api.ValidateAccessToken(ctx, token); err != nil {
		m.logger.DebugContext(ctx, "access token not valid", "error", err)
		return false
	}
	return true
}

// RefreshAccessToken exchanges refreshToken for a new pair and persists both tokens
// before publishing them. Concurrent calls for the same token share one request.
// It never signs the user out; callers decide what a rejection means.
func (m *SessionManager) RefreshAccessToken(ctx context.Context, refreshToken string) domainauth.RefreshResult {
	if strings.TrimSpace(refreshToken) == "" {
		return domainauth.RefreshResult{
			Outcome: domainauth.RefreshRejected,
			Err:     apperrors.Validation("refresh token is required"),
		}
	}

	v, _, shared := m.refreshGroup.Do(refreshToken, func() (any, error) {
		return m.doRefresh(ctx, refreshToken), nil
	})
	res, ok := v.(domainauth.RefreshResult)
	if !ok {
		res = domainauth.RefreshResult{
			Outcome: domainauth.RefreshUnknown,
			Err:     fmt.Errorf("unexpected refresh result %T", v),
		}
	}
	metrics.EmitRefresh(m.metrics, res.Outcome.String(), shared)
	return res
}

func (m *SessionManager) doRefresh(ctx context.Context, refreshToken string) domainauth.RefreshResult {
	pair, err := m.api.RefreshTokens(ctx, refreshToken)
	if err != nil {
		return domainauth.RefreshResult{Outcome: refreshOutcomeFor(err), Err: err}
	}

	// Login and Logout may have replaced the session while the request was in flight.
	m.opMu.Lock()
	defer m.opMu.Unlock()
	if !m.ownsRefreshToken(refreshToken) {
		m.logger.InfoContext(ctx, "session changed during token refresh; discarding issued tokens")
		return domainauth.RefreshResult{
			Outcome: domainauth.RefreshSuperseded,
			Err:     errRefreshSuperseded,
		}
	}

	if _, err := m.persistTokens(ctx, pair); err != nil {
		m.logger.ErrorContext(ctx, "failed to persist refreshed tokens", "error", err)
		return domainauth.RefreshResult{Outcome: domainauth.RefreshStorageFailure, Err: err}
	}

	m.mu.Lock()
	if m.state.RefreshToken == refreshToken {
		m.state.AccessToken = pair.AccessToken
		m.state.RefreshToken = pair.RefreshToken
	}
	m.mu.Unlock()

	return domainauth.RefreshResult{Outcome: domainauth.RefreshSucceeded, Tokens: pair}
}

// ownsRefreshToken reports whether refreshToken still belongs to the session.
// While the bootstrap check runs the stored token has not been published yet.
func (m *SessionManager) ownsRefreshToken(refreshToken string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.Status == domainauth.StatusInitializing {
		return true
	}
	return m.state.RefreshToken == refreshToken
}

// refreshOutcomeFor treats client errors as a definitive rejection. Server errors,
// throttling and timeouts leave the refresh token usable.
func refreshOutcomeFor(err error) domainauth.RefreshOutcome {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code == apperrors.ErrCodeAuthRejected {
		switch {
		case appErr.StatusCode == http.StatusRequestTimeout, appErr.StatusCode == http.StatusTooManyRequests:
			return domainauth.RefreshTransportFailure
		case appErr.StatusCode >= 400 && appErr.StatusCode < 500:
			return domainauth.RefreshRejected
		}
	}
	return domainauth.RefreshTransportFailure
}

// persistTokens writes the access then the refresh token and returns the keys written.
func (m *SessionManager) persistTokens(ctx context.Context, pair domainauth.TokenPair) ([]string, error) {
	var written []string
	for _, kv := range [...]struct{ key, value string }{
		{ports.KeyAccessToken, pair.AccessToken},
		{ports.KeyRefreshToken, pair.RefreshToken},
	} {
		if err := m.creds.Set(ctx, kv.key, kv.value); err != nil {
			return written, fmt.Errorf("store %s: %w", kv.key, err)
		}
		written = append(written, kv.key)
	}
	return written, nil
}

// Login exchanges a verification code for tokens and signs the user in.
// On failure the status is unchanged and LastError is LoginFailed.
func (m *SessionManager) Login(ctx context.Context, in LoginInput) error {
	in = in.normalized()
	if err := in.Validate(); err != nil {
		m.setLastError(domainauth.ErrorLoginFailed)
		return err
	}
	if err := m.waitReady(ctx); err != nil {
		m.setLastError(domainauth.ErrorLoginFailed)
		return err
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	pair, err := m.api.IssueToken(ctx, domainauth.Credentials{
		Username: in.Username,
		Phone:    in.Phone,
		Code:     in.Code,
	})
	if err != nil {
		m.logger.WarnContext(ctx, "login rejected", "username", in.Username, "error", err)
		m.setLastError(domainauth.ErrorLoginFailed)
		return fmt.Errorf("login: %w", err)
	}

	if written, err := m.persistTokens(ctx, pair); err != nil {
		m.logger.ErrorContext(ctx, "failed to persist login tokens", "error", err)
		if cleanupErr := m.deleteKeys(ctx, written...); cleanupErr != nil {
			m.logger.WarnContext(ctx, "failed to clean up partial login", "error", cleanupErr)
		}
		m.setLastError(domainauth.ErrorLoginFailed)
		return fmt.Errorf("login: %w", err)
	}
	if err := m.creds.Set(ctx, ports.KeyUsername, in.Username); err != nil {
		m.logger.WarnContext(ctx, "failed to persist username", "error", err)
	}

	m.transition("login", func(s *domainauth.Session) {
		*s = domainauth.Session{
			Status:       domainauth.StatusAuthenticated,
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			Username:     in.Username,
			Profile:      domainauth.Profile{Phone: in.Phone},
			Theme:        s.Theme,
		}
	})
	m.logger.InfoContext(ctx, "user logged in", "username", in.Username)
	return nil
}

// RequestVerificationCode asks the API to send a login code. It never changes the status.
func (m *SessionManager) RequestVerificationCode(ctx context.Context, username string) (domainauth.CodeReceipt, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		m.setLastError(domainauth.ErrorCodeRequestFailed)
		return nil, apperrors.ValidationField("username", "username is required")
	}

	receipt, err := m.api.RequestCode(ctx, username)
	if err != nil {
		m.logger.WarnContext(ctx, "verification code request failed", "username", username, "error", err)
		m.setLastError(domainauth.ErrorCodeRequestFailed)
		return nil, fmt.Errorf("request verification code: %w", err)
	}

	m.mu.Lock()
	if m.state.LastError == domainauth.ErrorCodeRequestFailed {
		m.state.LastError = domainauth.ErrorNone
	}
	m.mu.Unlock()
	return receipt, nil
}

// Logout clears persisted credentials and resets the session. It is idempotent;
// storage failures are logged and do not stop the reset.
func (m *SessionManager) Logout(ctx context.Context) error {
	if err := m.waitReady(ctx); err != nil {
		return err
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.logout(ctx, "logout")
	return nil
}

func (m *SessionManager) logout(ctx context.Context, trigger string) {
	for _, key := range []string{ports.KeyAccessToken, ports.KeyRefreshToken, ports.KeyUsername} {
		if err := m.creds.Delete(ctx, key); err != nil {
			m.logger.WarnContext(ctx, "failed to delete credential", "key", key, "error", err)
		}
	}
	m.transition(trigger, func(s *domainauth.Session) {
		*s = s.SignedOut()
	})
}

func (m *SessionManager) deleteKeys(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := m.creds.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// UpdateProfileImage sets the profile image URI and persists it in the background.
func (m *SessionManager) UpdateProfileImage(uri string) {
	uri = strings.TrimSpace(uri)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Profile.ProfileImage = uri
	m.persistDetached(ports.PrefProfileImage, uri)
}

// RemoveProfileImage clears the profile image.
func (m *SessionManager) RemoveProfileImage() {
	m.UpdateProfileImage("")
}

// ToggleTheme flips between light and dark and returns the new theme.
func (m *SessionManager) ToggleTheme() domainauth.Theme {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Theme = m.state.Theme.Toggle()
	m.persistDetached(ports.PrefTheme, string(m.state.Theme))
	return m.state.Theme
}

// persistDetached queues a preference write behind the previous one.
// Callers hold m.mu so queue order matches the order of in-memory updates.
func (m *SessionManager) persistDetached(key, value string) {
	if m.prefs == nil {
		return
	}

	m.persistMu.Lock()
	if m.persistClosed {
		m.persistMu.Unlock()
		m.logger.Warn("session closed; preference kept in memory only", "key", key)
		return
	}
	prev := m.persistTail
	done := make(chan struct{})
	m.persistTail = done
	m.persistWG.Add(1)
	m.persistMu.Unlock()

	go func() {
		defer m.persistWG.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		ctx, cancel := context.WithTimeout(context.Background(), m.persistTimeout)
		defer cancel()
		if err := m.prefs.Set(ctx, key, value); err != nil {
			m.logger.WarnContext(ctx, "failed to persist preference", "key", key, "error", err)
		}
	}()
}

// alert sends a session alert in the background. Close waits for it.
func (m *SessionManager) alert(kind, trigger, username string, cause error) {
	if m.alerts == nil {
		return
	}
	a := notify.SessionAlert{
		Kind:       kind,
		Username:   username,
		Trigger:    trigger,
		ErrorClass: obserrors.Classify(cause),
		OccurredAt: time.Now(),
	}
	if cause != nil {
		a.Error = cause.Error()
	}

	m.persistMu.Lock()
	if m.persistClosed {
		m.persistMu.Unlock()
		m.logger.Warn("session closed; alert dropped", "kind", kind)
		return
	}
	m.persistWG.Add(1)
	m.persistMu.Unlock()

	go func() {
		defer m.persistWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.persistTimeout)
		defer cancel()
		if err := m.alerts.SendSessionAlert(ctx, a); err != nil {
			m.logger.WarnContext(ctx, "failed to send session alert", "kind", kind, "error", err)
		}
	}()
}

// Close waits for queued preference writes and alerts or until ctx is done.
// Preference changes made after Close stay in memory.
func (m *SessionManager) Close(ctx context.Context) error {
	m.persistMu.Lock()
	m.persistClosed = true
	m.persistMu.Unlock()

	done := make(chan struct{})
	go func() {
		m.persistWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain preference writes: %w", ctx.Err())
	}
}

// waitReady blocks until the bootstrap check finishes, starting it if needed.
func (m *SessionManager) waitReady(ctx context.Context) error {
	m.Start(context.WithoutCancel(ctx))
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
	}
}

func (m *SessionManager) setLastError(kind domainauth.ErrorKind) {
	m.mu.Lock()
	m.state.LastError = kind
	m.mu.Unlock()
}

// transition applies fn to the session under lock and records the status change.
func (m *SessionManager) transition(trigger string, fn func(*domainauth.Session)) {
	m.mu.Lock()
	from := m.state.Status
	fn(&m.state)
	to := m.state.Status
	m.mu.Unlock()

	if from == to {
		return
	}
	metrics.EmitTransition(m.metrics, metrics.TransitionMetric{
		From:    string(from),
		To:      string(to),
		Trigger: trigger,
	})
	m.logger.Info("session transition", "from", from, "to", to, "trigger", trigger)
}
