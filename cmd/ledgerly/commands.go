package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/ledgerly/config"
	"github.com/target/ledgerly/internal/bootstrap"
	domainauth "github.com/target/ledgerly/internal/domain/auth"
	"github.com/target/ledgerly/internal/migrate"
	"github.com/target/ledgerly/internal/service"
)

const defaultMigrationTimeout = 5 * time.Minute

var errNotSignedIn = errors.New("not signed in; run `ledgerly login` first")

// withApp builds the app, restores the session and always drains background
// writes and flushes metrics before returning.
func withApp(cmdCtx *commandContext, fn func(ctx context.Context, app *bootstrap.App) error) (err error) {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	newApp := cmdCtx.newApp
	if newApp == nil {
		newApp = func(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*bootstrap.App, error) {
			return bootstrap.NewApp(ctx, cfg, logger, bootstrap.AppOptions{})
		}
	}
	app, err := newApp(ctx, cmdCtx.Config, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.WithoutCancel(ctx), defaultCloseTimeout)
		defer closeCancel()
		if closeErr := app.Close(closeCtx); closeErr != nil {
			cmdCtx.Logger.WarnContext(closeCtx, "shutdown incomplete", "error", closeErr)
		}
	}()

	app.Session.CheckAuthState(ctx)
	return fn(ctx, app)
}

func newFlagSet(cmdCtx *commandContext, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cmdCtx.Stdout)
	return fs
}

func runStatus(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet(cmdCtx, "status")
	asJSON := fs.Bool("json", false, "Print the session snapshot as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cmdCtx, func(_ context.Context, app *bootstrap.App) error {
		snap := app.Session.Snapshot()
		if *asJSON {
			return writeJSON(cmdCtx.Stdout, snap)
		}
		return printSnapshot(cmdCtx.Stdout, snap)
	})
}

func runRequestCode(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet(cmdCtx, "request-code")
	username := fs.String("username", "", "Account username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cmdCtx, func(ctx context.Context, app *bootstrap.App) error {
		receipt, err := app.Session.RequestVerificationCode(ctx, *username)
		if err != nil {
			return fmt.Errorf("request code: %w", err)
		}
		if msg, ok := receipt["message"].(string); ok && msg != "" {
			return writef(cmdCtx.Stdout, "%s\n", msg)
		}
		return writef(cmdCtx.Stdout, "verification code requested\n")
	})
}

func runLogin(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet(cmdCtx, "login")
	var in service.LoginInput
	fs.StringVar(&in.Username, "username", "", "Account username")
	fs.StringVar(&in.Phone, "phone", "", "Phone number on the account")
	fs.StringVar(&in.Code, "code", "", "Verification code")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cmdCtx, func(ctx context.Context, app *bootstrap.App) error {
		if err := app.Session.Login(ctx, in); err != nil {
			return err
		}
		return writef(cmdCtx.Stdout, "signed in as %s\n", app.Session.Snapshot().Username)
	})
}

func runLogout(cmdCtx *commandContext, _ []string) error {
	return withApp(cmdCtx, func(ctx context.Context, app *bootstrap.App) error {
		if err := app.Session.Logout(ctx); err != nil {
			return err
		}
		return writef(cmdCtx.Stdout, "signed out\n")
	})
}

func runWhoami(cmdCtx *commandContext, _ []string) error {
	return withApp(cmdCtx, func(_ context.Context, app *bootstrap.App) error {
		snap := app.Session.Snapshot()
		if !snap.IsAuthenticated {
			return errNotSignedIn
		}
		tw := tabwriter.NewWriter(cmdCtx.Stdout, 0, 0, 2, ' ', 0)
		rows := [][2]string{
			{"Username", snap.Username},
			{"Name", snap.Profile.Name},
			{"Phone", snap.Profile.Phone},
			{"Profile image", snap.Profile.ProfileImage},
		}
		for _, row := range rows {
			if err := writef(tw, "%s:\t%s\n", row[0], row[1]); err != nil {
				return err
			}
		}
		return tw.Flush()
	})
}

func runTheme(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet(cmdCtx, "theme")
	toggle := fs.Bool("toggle", false, "Switch between light and dark")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withApp(cmdCtx, func(_ context.Context, app *bootstrap.App) error {
		theme := app.Session.Snapshot().Theme
		if *toggle {
			theme = app.Session.ToggleTheme()
		}
		return writef(cmdCtx.Stdout, "%s\n", theme)
	})
}

func runProfileImage(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet(cmdCtx, "profile-image")
	set := fs.String("set", "", "Image URI to use")
	remove := fs.Bool("remove", false, "Clear the profile image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	uri := strings.TrimSpace(*set)
	if (uri == "") == !*remove {
		return errors.New("exactly one of -set or -remove is required")
	}

	return withApp(cmdCtx, func(_ context.Context, app *bootstrap.App) error {
		if !app.Session.Snapshot().IsAuthenticated {
			return errNotSignedIn
		}
		if *remove {
			app.Session.RemoveProfileImage()
			return writef(cmdCtx.Stdout, "profile image removed\n")
		}
		app.Session.UpdateProfileImage(uri)
		return writef(cmdCtx.Stdout, "profile image set to %s\n", uri)
	})
}

func runSearch(cmdCtx *commandContext, args []string) error {
	fs := newFlagSet(cmdCtx, "search")
	asJSON := fs.Bool("json", false, "Print results as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")

	return withApp(cmdCtx, func(ctx context.Context, app *bootstrap.App) error {
		results, err := app.Directory.Search(ctx, query)
		if err != nil {
			return err
		}
		if *asJSON {
			return writeJSON(cmdCtx.Stdout, results)
		}
		if len(results) == 0 {
			return writef(cmdCtx.Stdout, "no users found\n")
		}
		tw := tabwriter.NewWriter(cmdCtx.Stdout, 0, 0, 2, ' ', 0)
		if err := writef(tw, "ID\tNAME\tUSERNAME\tFRIEND\n"); err != nil {
			return err
		}
		for _, r := range results {
			if err := writef(tw, "%d\t%s\t%s\t%t\n", r.ID, r.Name, r.Username, r.IsFriend); err != nil {
				return err
			}
		}
		return tw.Flush()
	})
}

type migrateOptions struct {
	Timeout time.Duration
	Status  bool
}

func parseMigrateFlags(cmdCtx *commandContext, args []string) (migrateOptions, error) {
	fs := newFlagSet(cmdCtx, "migrate")
	opts := migrateOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete")
	fs.BoolVar(&opts.Status, "status", false, "List pending migrations without applying them")
	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(cmdCtx, args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	if opts.Status {
		pending, err := migrate.Pending(ctx, db)
		if err != nil {
			return err
		}
		return printVersions(cmdCtx.Stdout, "pending", pending)
	}

	applied, err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger)
	if err != nil {
		return err
	}
	return printVersions(cmdCtx.Stdout, "applied", applied)
}

func printVersions(w io.Writer, label string, versions []string) error {
	if len(versions) == 0 {
		return writef(w, "no migrations %s\n", label)
	}
	sort.Strings(versions)
	for _, v := range versions {
		if err := writef(w, "%s %s\n", label, v); err != nil {
			return err
		}
	}
	return nil
}

func printSnapshot(w io.Writer, snap domainauth.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"Status", string(snap.Status)},
		{"Username", snap.Username},
		{"Theme", string(snap.Theme)},
	}
	if snap.LastError != "" {
		rows = append(rows, [2]string{"Last error", string(snap.LastError)})
	}
	for _, row := range rows {
		if err := writef(tw, "%s:\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
