package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents which token API backs the session.
type AuthMode string

const (
	// AuthModeRemote talks to the HTTP token API.
	AuthModeRemote AuthMode = "remote"
	// AuthModeMock uses the in-process development API (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "remote", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: remote, mock)", v)
	}
}

// DevAuthConfig controls the mock identity and token signing.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	Username     string        `env:"USERNAME"      envDefault:"demo"`
	Phone        string        `env:"PHONE"         envDefault:"5550100"`
	Name         string        `env:"NAME"          envDefault:"Demo User"`
	ProfileImage string        `env:"PROFILE_IMAGE"`
	Code         string        `env:"CODE"          envDefault:"000000"`
	Secret       string        `env:"SECRET"        envDefault:"ledgerly-dev-secret"`
	AccessTTL    time.Duration `env:"ACCESS_TTL"    envDefault:"15m"`
	RefreshTTL   time.Duration `env:"REFRESH_TTL"   envDefault:"720h"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which token API to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"remote"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize trims identity fields and restores non-positive TTLs to their defaults.
func (c *AuthConfig) Sanitize() {
	c.DevAuth.Username = strings.TrimSpace(c.DevAuth.Username)
	c.DevAuth.Phone = strings.TrimSpace(c.DevAuth.Phone)
	c.DevAuth.Code = strings.TrimSpace(c.DevAuth.Code)
	if c.DevAuth.AccessTTL <= 0 {
		c.DevAuth.AccessTTL = 15 * time.Minute
	}
	if c.DevAuth.RefreshTTL <= 0 {
		c.DevAuth.RefreshTTL = 30 * 24 * time.Hour
	}
}
