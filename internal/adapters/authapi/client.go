// Package authapi implements ports.AuthAPI against the ledgerly HTTP API.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"
	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"

	domainauth "github.com/target/ledgerly/internal/domain/auth"
	apperrors "github.com/target/ledgerly/internal/errors"
	"github.com/target/ledgerly/internal/observability/metrics"
	"github.com/target/ledgerly/internal/observability/statsd"
	"github.com/target/ledgerly/internal/ports"
)

// Endpoint paths relative to the configured base URL.
const (
	PathProfile      = "/users/me"
	PathValidate     = "/auth/validate-access"
	PathRefresh      = "/auth/refresh"
	PathToken        = "/auth/token"
	PathRequestCode  = "/auth/request-code"
	maxResponseBytes = 1 << 20
)

// ProfileFields holds JMESPath expressions used to read the /users/me response.
type ProfileFields struct {
	Username     string
	Phone        string
	Name         string
	ProfileImage string
}

// DefaultProfileFields matches the API's own field names.
func DefaultProfileFields() ProfileFields {
	return ProfileFields{
		Username:     "username",
		Phone:        "phone_number",
		Name:         "name",
		ProfileImage: "profile_image",
	}
}

// Config configures the HTTP client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// Transport is the base round tripper; defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Fields    ProfileFields
	Logger    *slog.Logger
	Metrics   statsd.Sink
}

// Client talks to the remote auth endpoints. It is safe for concurrent use.
type Client struct {
	baseURL   string
	timeout   time.Duration
	userAgent string
	base      http.RoundTripper
	jar       http.CookieJar
	fields    ProfileFields
	logger    *slog.Logger
	metrics   statsd.Sink
}

var _ ports.AuthAPI = (*Client)(nil)

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("api base url is required")
	}

	fields := mergeFields(cfg.Fields)
	for name, expr := range map[string]string{
		"username":      fields.Username,
		"phone":         fields.Phone,
		"name":          fields.Name,
		"profile_image": fields.ProfileImage,
	} {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("invalid profile %s expression %q: %w", name, expr, err)
		}
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:   base,
		timeout:   timeout,
		userAgent: strings.TrimSpace(cfg.UserAgent),
		base:      transport,
		jar:       jar,
		fields:    fields,
		logger:    logger.With("component", "authapi"),
		metrics:   cfg.Metrics,
	}, nil
}

func mergeFields(f ProfileFields) ProfileFields {
	def := DefaultProfileFields()
	if strings.TrimSpace(f.Username) != "" {
		def.Username = strings.TrimSpace(f.Username)
	}
	if strings.TrimSpace(f.Phone) != "" {
		def.Phone = strings.TrimSpace(f.Phone)
	}
	if strings.TrimSpace(f.Name) != "" {
		def.Name = strings.TrimSpace(f.Name)
	}
	if strings.TrimSpace(f.ProfileImage) != "" {
		def.ProfileImage = strings.TrimSpace(f.ProfileImage)
	}
	return def
}

// FetchProfile loads the identity behind accessToken.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (domainauth.Identity, error) {
	var doc any
	if err := c.do(ctx, call{method: http.MethodGet, path: PathProfile, bearer: accessToken}, &doc); err != nil {
		return domainauth.Identity{}, err
	}

	username := c.stringField(c.fields.Username, doc)
	if username == "" {
		return domainauth.Identity{}, apperrors.Wrap(
			errors.New("missing username"), apperrors.ErrCodeInternal, "decode "+PathProfile)
	}
	return domainauth.Identity{
		Username: username,
		Profile: domainauth.Profile{
			Name:         c.stringField(c.fields.Name, doc),
			Phone:        c.stringField(c.fields.Phone, doc),
			ProfileImage: c.stringField(c.fields.ProfileImage, doc),
		},
	}, nil
}

// ValidateAccessToken returns nil when the server accepts accessToken.
func (c *Client) ValidateAccessToken(ctx context.Context, accessToken string) error {
	return c.do(ctx, call{method: http.MethodGet, path: PathValidate, bearer: accessToken}, nil)
}

// RefreshTokens exchanges refreshToken for a new token pair.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (domainauth.TokenPair, error) {
	var pair domainauth.TokenPair
	if err := c.do(ctx, call{method: http.MethodPost, path: PathRefresh, bearer: refreshToken}, &pair); err != nil {
		return domainauth.TokenPair{}, err
	}
	if !pair.Complete() {
		return domainauth.TokenPair{}, apperrors.Wrap(
			errors.New("incomplete token pair"), apperrors.ErrCodeInternal, "decode "+PathRefresh)
	}
	return pair, nil
}

// IssueToken exchanges login credentials for a token pair.
func (c *Client) IssueToken(ctx context.Context, creds domainauth.Credentials) (domainauth.TokenPair, error) {
	var pair domainauth.TokenPair
	if err := c.do(ctx, call{method: http.MethodPost, path: PathToken, body: creds}, &pair); err != nil {
		return domainauth.TokenPair{}, err
	}
	if !pair.Complete() {
		return domainauth.TokenPair{}, apperrors.Wrap(
			errors.New("incomplete token pair"), apperrors.ErrCodeInternal, "decode "+PathToken)
	}
	return pair, nil
}

// RequestCode asks the server to send a verification code to username.
func (c *Client) RequestCode(ctx context.Context, username string) (domainauth.CodeReceipt, error) {
	receipt := domainauth.CodeReceipt{}
	body := map[string]string{"username": username}
	if err := c.do(ctx, call{method: http.MethodPost, path: PathRequestCode, body: body}, &receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

type call struct {
	method string
	path   string
	bearer string
	body   any
}

// do performs one request under the per-call timeout and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, in call, out any) (err error) {
	start := time.Now()
	defer func() {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
		}
		metrics.EmitAPICall(c.metrics, metrics.APICallMetric{
			Endpoint: in.path,
			Result:   result,
			Duration: time.Since(start),
			Err:      err,
		})
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, in)
	if err != nil {
		return err
	}

	resp, err := c.httpClient(in.bearer).Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "request failed", "endpoint", in.path, "error", err)
		return apperrors.Transport(err, in.path)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.DebugContext(ctx, "request rejected", "endpoint", in.path, "status", resp.StatusCode)
		return apperrors.Rejected(in.path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperrors.Transport(err, in.path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode "+in.path)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, in call) (*http.Request, error) {
	var body io.Reader
	if in.body != nil {
		payload, err := json.Marshal(in.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", in.path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, in.method, c.baseURL+in.path, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", in.path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

// httpClient returns a client that attaches bearer as the Authorization header when set.
func (c *Client) httpClient(bearer string) *http.Client {
	rt := c.base
	if bearer != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearer, TokenType: "Bearer"}),
			Base:   c.base,
		}
	}
	return &http.Client{Transport: rt, Jar: c.jar}
}

func (c *Client) stringField(expr string, doc any) string {
	v, err := jmespath.Search(expr, doc)
	if err != nil {
		c.logger.Debug("profile field lookup failed", "expression", expr, "error", err)
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
