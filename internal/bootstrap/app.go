package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/ledgerly/config"
	"github.com/target/ledgerly/internal/devseed"
	"github.com/target/ledgerly/internal/ports"
	"github.com/target/ledgerly/internal/service"
)

// App is the wired set of services a single CLI invocation works with.
type App struct {
	Config  config.AppConfig
	Logger  *slog.Logger
	Stores  *Stores
	Metrics *Metrics

	Session   *service.SessionManager
	Friends   *service.FriendsService
	Groups    *service.GroupsService
	Directory *service.DirectoryService
}

// AppOptions overrides pieces of the wiring, mainly for tests.
type AppOptions struct {
	// API replaces the token API built from config.
	API ports.AuthAPI
	// Stores replaces the stores built from config.
	Stores *Stores
}

// NewApp builds every dependency from cfg and loads the stored friends and groups.
// The session bootstrap is not started.
func NewApp(ctx context.Context, cfg config.AppConfig, logger *slog.Logger, opts AppOptions) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := BuildMetrics(cfg.Observability.Metrics, logger)
	if err != nil {
		return nil, err
	}

	alerts, err := BuildAlertSink(cfg.Observability.Notifications)
	if err != nil {
		return nil, errors.Join(err, metrics.Close())
	}

	api := opts.API
	if api == nil {
		api, err = BuildAuthAPI(AuthAPIConfig{
			Auth:    cfg.Auth,
			API:     cfg.API,
			Logger:  logger,
			Metrics: metrics.Sink,
		})
		if err != nil {
			return nil, errors.Join(err, metrics.Close())
		}
	}

	stores := opts.Stores
	if stores == nil {
		stores, err = BuildStores(ctx, StoresConfig{
			Storage:  cfg.Storage,
			Postgres: cfg.Postgres,
			Redis:    cfg.Redis,
			Logger:   logger,
		})
		if err != nil {
			return nil, errors.Join(fmt.Errorf("build stores: %w", err), metrics.Close())
		}
	}

	session, err := service.NewSessionManager(service.SessionManagerOptions{
		API:            api,
		Credentials:    stores.Credentials,
		Preferences:    stores.Preferences,
		Logger:         logger,
		Metrics:        metrics.Sink,
		Alerts:         alerts,
		PersistTimeout: cfg.Storage.PersistTimeout,
	})
	if err != nil {
		return nil, errors.Join(err, stores.Close(), metrics.Close())
	}

	friends := service.NewFriendsService(service.FriendsServiceOptions{Store: stores.Preferences})
	if err := friends.Load(ctx); err != nil {
		logger.WarnContext(ctx, "failed to load friends list", "error", err)
	}
	groups := service.NewGroupsService(service.GroupsServiceOptions{
		Clock: service.RealClock{},
		Store: stores.Preferences,
	})
	if err := groups.Load(ctx); err != nil {
		logger.WarnContext(ctx, "failed to load groups", "error", err)
	}

	return &App{
		Config:  cfg,
		Logger:  logger,
		Stores:  stores,
		Metrics: metrics,
		Session: session,
		Friends: friends,
		Groups:  groups,
		Directory: service.NewDirectoryService(service.DirectoryServiceOptions{
			Directory: devseed.NewDirectory(),
			Friends:   friends,
			Logger:    logger,
		}),
	}, nil
}

// Close drains background session writes, flushes metrics and closes stores.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Session.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.Metrics.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.Stores.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
