package config

import (
	"strings"
	"time"
)

const defaultAPITimeout = 10 * time.Second

// ProfileFieldsConfig holds JMESPath expressions that locate profile fields
// in the /users/me response.
type ProfileFieldsConfig struct {
	Username string `env:"USERNAME" envDefault:"username"`
	Phone    string `env:"PHONE"    envDefault:"phone_number"`
	Name     string `env:"NAME"     envDefault:"name"`
	Image    string `env:"IMAGE"    envDefault:"profile_image"`
}

// APIConfig configures the remote token API client.
type APIConfig struct {
	BaseURL   string        `env:"API_BASE_URL"   envDefault:"http://localhost:8000/api/v1"`
	Timeout   time.Duration `env:"API_TIMEOUT"    envDefault:"10s"`
	UserAgent string        `env:"API_USER_AGENT" envDefault:"ledgerly-cli"`

	Profile ProfileFieldsConfig `envPrefix:"API_PROFILE_"`
}

// Sanitize trims the base URL and restores a non-positive timeout to the default.
func (c *APIConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.UserAgent = strings.TrimSpace(c.UserAgent)
	if c.Timeout <= 0 {
		c.Timeout = defaultAPITimeout
	}
}
