package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/target/ledgerly/config"
	"github.com/target/ledgerly/internal/adapters/authapi"
	"github.com/target/ledgerly/internal/adapters/devauth"
	"github.com/target/ledgerly/internal/observability/statsd"
	"github.com/target/ledgerly/internal/ports"
)

// AuthAPIConfig contains configuration for the token API.
type AuthAPIConfig struct {
	Auth    config.AuthConfig
	API     config.APIConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// BuildAuthAPI creates the token API for the configured auth mode.
//
//nolint:ireturn // callers only need the port; the concrete adapter depends on AUTH_MODE.
func BuildAuthAPI(cfg AuthAPIConfig) (ports.AuthAPI, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		dev := cfg.Auth.DevAuth
		api, err := devauth.New(devauth.Config{
			Username:     dev.Username,
			Phone:        dev.Phone,
			Name:         dev.Name,
			ProfileImage: dev.ProfileImage,
			Code:         dev.Code,
			Secret:       dev.Secret,
			AccessTTL:    dev.AccessTTL,
			RefreshTTL:   dev.RefreshTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("build dev auth api: %w", err)
		}
		if cfg.Logger != nil {
			cfg.Logger.Warn("using in-process dev auth api; do not use in production", "username", dev.Username)
		}
		return api, nil

	case config.AuthModeRemote, "":
		client, err := authapi.New(authapi.Config{
			BaseURL:   cfg.API.BaseURL,
			Timeout:   cfg.API.Timeout,
			UserAgent: cfg.API.UserAgent,
			Fields: authapi.ProfileFields{
				Username:     cfg.API.Profile.Username,
				Phone:        cfg.API.Profile.Phone,
				Name:         cfg.API.Profile.Name,
				ProfileImage: cfg.API.Profile.Image,
			},
			Logger:  cfg.Logger,
			Metrics: cfg.Metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("build auth api client: %w", err)
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}
