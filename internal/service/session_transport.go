package service

import (
	"context"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	domainauth "github.com/target/ledgerly/internal/domain/auth"
	"github.com/target/ledgerly/internal/observability/notify"
)

type sessionTokenSource struct {
	m *SessionManager
}

// Token returns the current access token as a bearer token.
func (s sessionTokenSource) Token() (*oauth2.Token, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	if s.m.state.Status != domainauth.StatusAuthenticated || s.m.state.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}
	return &oauth2.Token{AccessToken: s.m.state.AccessToken, TokenType: "Bearer"}, nil
}

// TokenSource exposes the session's access token to oauth2-aware clients.
// It does not refresh; use HTTPClient for refresh-on-401.
func (m *SessionManager) TokenSource() oauth2.TokenSource {
	return sessionTokenSource{m: m}
}

// HTTPClient returns a copy of base that authenticates requests with the session's
// access token. A 401 response triggers one shared refresh and a single retry;
// a rejected refresh signs the user out.
func (m *SessionManager) HTTPClient(base *http.Client) *http.Client {
	var c http.Client
	if base != nil {
		c = *base
	}
	rt := c.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	c.Transport = &refreshingTransport{m: m, base: rt}
	return &c
}

type refreshingTransport struct {
	m    *SessionManager
	base http.RoundTripper
}

func (t *refreshingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.m.TokenSource().Token()
	if err != nil {
		return nil, err
	}

	resp, err := t.send(req, tok)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	// Bodies that cannot be replayed are not retried.
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}

	next, ok := t.m.refreshAfterUnauthorized(req.Context(), tok.AccessToken)
	if !ok {
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return t.send(retry, next)
}

func (t *refreshingTransport) send(req *http.Request, tok *oauth2.Token) (*http.Response, error) {
	r := req.Clone(req.Context())
	tok.SetAuthHeader(r)
	return t.base.RoundTrip(r)
}

// refreshAfterUnauthorized returns a usable access token after stale was refused.
// If another caller already rotated the token, the newer one is returned without a request.
func (m *SessionManager) refreshAfterUnauthorized(ctx context.Context, stale string) (*oauth2.Token, bool) {
	m.mu.RLock()
	st := m.state
	m.mu.RUnlock()

	if st.Status != domainauth.StatusAuthenticated || st.RefreshToken == "" {
		return nil, false
	}
	if st.AccessToken != stale && st.AccessToken != "" {
		return &oauth2.Token{AccessToken: st.AccessToken, TokenType: "Bearer"}, true
	}

	res := m.RefreshAccessToken(ctx, st.RefreshToken)
	switch res.Outcome {
	case domainauth.RefreshSucceeded:
		return &oauth2.Token{AccessToken: res.Tokens.AccessToken, TokenType: "Bearer"}, true
	case domainauth.RefreshRejected:
		m.opMu.Lock()
		defer m.opMu.Unlock()
		m.mu.RLock()
		current := m.state.RefreshToken
		m.mu.RUnlock()
		if current == st.RefreshToken {
			m.logger.InfoContext(ctx, "refresh token rejected after 401; signing out")
			m.logout(ctx, "refresh_rejected")
			m.alert(notify.KindForcedSignOut, "refresh_rejected", st.Username, res.Err)
		}
		return nil, false
	default:
		m.logger.WarnContext(ctx, "token refresh after 401 failed", "outcome", res.Outcome.String(), "error", res.Err)
		return nil, false
	}
}
