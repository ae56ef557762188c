package devauth

// Package devauth provides a config-driven, in-process AuthAPI for local development.
// Tokens are HS256 JWTs, so sessions survive process restarts without a server.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domainauth "github.com/target/ledgerly/internal/domain/auth"
	apperrors "github.com/target/ledgerly/internal/errors"
	"github.com/target/ledgerly/internal/ports"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	issuer           = "ledgerly-devauth"

	// DefaultCode is accepted as the verification code when Config.Code is empty.
	DefaultCode = "000000"
)

// Config controls the dev API. Username, Phone and Secret are required.
type Config struct {
	Username     string
	Phone        string
	Name         string
	ProfileImage string
	Code         string
	Secret       string
	AccessTTL    time.Duration // default 15m
	RefreshTTL   time.Duration // default 30 days
	Now          func() time.Time
}

type claims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// API implements ports.AuthAPI for a single configured identity.
type API struct {
	identity   domainauth.Identity
	code       string
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

var _ ports.AuthAPI = (*API)(nil)

// New constructs a dev API from Config.
func New(cfg Config) (*API, error) {
	if strings.TrimSpace(cfg.Username) == "" {
		return nil, errors.New("dev auth: Username is required")
	}
	if strings.TrimSpace(cfg.Phone) == "" {
		return nil, errors.New("dev auth: Phone is required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("dev auth: Secret is required")
	}

	api := &API{
		identity: domainauth.Identity{
			Username: strings.TrimSpace(cfg.Username),
			Profile: domainauth.Profile{
				Name:         strings.TrimSpace(cfg.Name),
				Phone:        strings.TrimSpace(cfg.Phone),
				ProfileImage: strings.TrimSpace(cfg.ProfileImage),
			},
		},
		code:       cfg.Code,
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
	}
	if api.code == "" {
		api.code = DefaultCode
	}
	if api.accessTTL <= 0 {
		api.accessTTL = 15 * time.Minute
	}
	if api.refreshTTL <= 0 {
		api.refreshTTL = 30 * 24 * time.Hour
	}
	if api.now == nil {
		api.now = time.Now
	}
	return api, nil
}

func (a *API) FetchProfile(ctx context.Context, accessToken string) (domainauth.Identity, error) {
	if err := a.verify(ctx, accessToken, tokenTypeAccess, "/users/me"); err != nil {
		return domainauth.Identity{}, err
	}
	return a.identity, nil
}

func (a *API) ValidateAccessToken(ctx context.Context, accessToken string) error {
	return a.verify(ctx, accessToken, tokenTypeAccess, "/auth/validate-access")
}

func (a *API) RefreshTokens(ctx context.Context, refreshToken string) (domainauth.TokenPair, error) {
	if err := a.verify(ctx, refreshToken, tokenTypeRefresh, "/auth/refresh"); err != nil {
		return domainauth.TokenPair{}, err
	}
	return a.issue()
}

func (a *API) IssueToken(ctx context.Context, creds domainauth.Credentials) (domainauth.TokenPair, error) {
	if err := ctx.Err(); err != nil {
		return domainauth.TokenPair{}, apperrors.Transport(err, "/auth/token")
	}
	if !strings.EqualFold(strings.TrimSpace(creds.Username), a.identity.Username) ||
		strings.TrimSpace(creds.Phone) != a.identity.Profile.Phone ||
		strings.TrimSpace(creds.Code) != a.code {
		return domainauth.TokenPair{}, apperrors.Rejected("/auth/token", http.StatusUnauthorized)
	}
	return a.issue()
}

func (a *API) RequestCode(ctx context.Context, username string) (domainauth.CodeReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Transport(err, "/auth/request-code")
	}
	if !strings.EqualFold(strings.TrimSpace(username), a.identity.Username) {
		return nil, apperrors.Rejected("/auth/request-code", http.StatusNotFound)
	}
	return domainauth.CodeReceipt{
		"message": "verification code sent",
		"channel": "dev",
	}, nil
}

func (a *API) issue() (domainauth.TokenPair, error) {
	access, err := a.sign(tokenTypeAccess, a.accessTTL)
	if err != nil {
		return domainauth.TokenPair{}, err
	}
	refresh, err := a.sign(tokenTypeRefresh, a.refreshTTL)
	if err != nil {
		return domainauth.TokenPair{}, err
	}
	return domainauth.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (a *API) sign(typ string, ttl time.Duration) (string, error) {
	now := a.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.identity.Username,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := tok.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

func (a *API) verify(ctx context.Context, raw, typ, endpoint string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Transport(err, endpoint)
	}
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return a.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(a.now))
	if err != nil || !parsed.Valid {
		return apperrors.Rejected(endpoint, http.StatusUnauthorized)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || c.Type != typ || c.Subject != a.identity.Username {
		return apperrors.Rejected(endpoint, http.StatusUnauthorized)
	}
	return nil
}
