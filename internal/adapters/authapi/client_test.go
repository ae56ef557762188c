package authapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/ledgerly/internal/domain/auth"
	apperrors "github.com/target/ledgerly/internal/errors"
)

func newTestClient(t *testing.T, h http.HandlerFunc, mutate ...func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := Config{BaseURL: srv.URL + "/api/v1/", Timeout: 2 * time.Second, UserAgent: "ledgerly-test"}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{BaseURL: "http://x", Fields: ProfileFields{Name: "user.[name"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid profile name expression")
}

func TestFetchProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/users/me", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "ledgerly-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"username":"sam","phone_number":"5551234","name":"Sam Lee"}`))
	})

	id, err := c.FetchProfile(t.Context(), "access-1")
	require.NoError(t, err)
	assert.Equal(t, "sam", id.Username)
	assert.Equal(t, "5551234", id.Profile.Phone)
	assert.Equal(t, "Sam Lee", id.Profile.Name)
	assert.Empty(t, id.Profile.ProfileImage)
}

func TestFetchProfile_CustomFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"user":{"handle":"sam","contact":{"phone":"555"}}}`))
	}, func(cfg *Config) {
		cfg.Fields = ProfileFields{Username: "user.handle", Phone: "user.contact.phone"}
	})

	id, err := c.FetchProfile(t.Context(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "sam", id.Username)
	assert.Equal(t, "555", id.Profile.Phone)
}

func TestFetchProfile_MissingUsername(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"phone_number":"555"}`))
	})

	_, err := c.FetchProfile(t.Context(), "tok")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInternal, apperrors.GetCode(err))
}

func TestValidateAccessToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer good" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})

	require.NoError(t, c.ValidateAccessToken(t.Context(), "good"))

	err := c.ValidateAccessToken(t.Context(), "bad")
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthRejected(err))
}

func TestRefreshTokens(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/auth/refresh", r.URL.Path)
		assert.Equal(t, "Bearer refresh-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "a2", "refresh_token": "r2"})
	})

	pair, err := c.RefreshTokens(t.Context(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, domainauth.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, pair)
}

func TestRefreshTokens_Incomplete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"a2"}`))
	})

	_, err := c.RefreshTokens(t.Context(), "r")
	require.Error(t, err)
	assert.False(t, apperrors.IsAuthRejected(err))
}

func TestIssueToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/token", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"username": "sam", "phone_number": "555", "code": "1234"}, body)
		_, _ = w.Write([]byte(`{"access_token":"a1","refresh_token":"r1"}`))
	})

	pair, err := c.IssueToken(t.Context(), domainauth.Credentials{Username: "sam", Phone: "555", Code: "1234"})
	require.NoError(t, err)
	assert.Equal(t, "a1", pair.AccessToken)
	assert.Equal(t, "r1", pair.RefreshToken)
}

func TestIssueToken_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.IssueToken(t.Context(), domainauth.Credentials{Username: "sam", Phone: "555", Code: "0000"})
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusForbidden, appErr.StatusCode)
}

func TestRequestCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sam", body["username"])
		_, _ = w.Write([]byte(`{"message":"code sent","channel":"sms"}`))
	})

	receipt, err := c.RequestCode(t.Context(), "sam")
	require.NoError(t, err)
	assert.Equal(t, "code sent", receipt["message"])
}

func TestRequestCode_EmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	receipt, err := c.RequestCode(t.Context(), "sam")
	require.NoError(t, err)
	assert.NotNil(t, receipt)
	assert.Empty(t, receipt)
}

func TestTimeoutIsTransportFailure(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })
	defer close(release)

	err := c.ValidateAccessToken(t.Context(), "tok")
	require.Error(t, err)
	assert.True(t, apperrors.IsTransport(err))
}

func TestUnreachableServerIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.RefreshTokens(t.Context(), "r")
	require.Error(t, err)
	assert.True(t, apperrors.IsTransport(err))
}

type countingSink struct {
	counts atomic.Int32
}

func (s *countingSink) Count(string, int64, map[string]string)         { s.counts.Add(1) }
func (s *countingSink) Gauge(string, float64, map[string]string)       {}
func (s *countingSink) Timing(string, time.Duration, map[string]string) {}

func TestEmitsAPICallMetrics(t *testing.T) {
	sink := &countingSink{}
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, func(cfg *Config) { cfg.Metrics = sink })

	require.NoError(t, c.ValidateAccessToken(t.Context(), "tok"))
	assert.Equal(t, int32(1), sink.counts.Load())
}
