package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/target/ledgerly/config"
	"github.com/target/ledgerly/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Stdout io.Writer

	// newApp is swapped in tests.
	newApp func(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*bootstrap.App, error)
}

const (
	defaultCommandTimeout = 30 * time.Second
	defaultCloseTimeout   = 5 * time.Second
)

func main() {
	if len(os.Args) < 2 {
		_ = printUsage(os.Stdout)
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		_ = writef(os.Stderr, "unknown command %q\n\n", cmdName)
		_ = printUsage(os.Stderr)
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	logger := bootstrap.InitLogger(cfg.Log)
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		Stdout: os.Stdout,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(ctx, "command failed", "command", cmdName, "error", runErr)
		stop()
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"status": {
			name:        "status",
			description: "Restore the stored session and print its state",
			run:         runStatus,
		},
		"request-code": {
			name:        "request-code",
			description: "Ask the API to send a verification code (-username)",
			run:         runRequestCode,
		},
		"login": {
			name:        "login",
			description: "Sign in with a verification code (-username -phone -code)",
			run:         runLogin,
		},
		"logout": {
			name:        "logout",
			description: "Sign out and delete stored credentials",
			run:         runLogout,
		},
		"whoami": {
			name:        "whoami",
			description: "Print the signed-in user's profile",
			run:         runWhoami,
		},
		"theme": {
			name:        "theme",
			description: "Print the theme, or switch it with -toggle",
			run:         runTheme,
		},
		"profile-image": {
			name:        "profile-image",
			description: "Set (-set URI) or clear (-remove) the profile image",
			run:         runProfileImage,
		},
		"search": {
			name:        "search",
			description: "Search the user directory (search QUERY)",
			run:         runSearch,
		},
		"friends": {
			name:        "friends",
			description: "Manage friends: list | add | delete",
			run:         runFriends,
		},
		"groups": {
			name:        "groups",
			description: "Manage groups: list | create | rename | image | members | touch | delete",
			run:         runGroups,
		},
		"migrate": {
			name:        "migrate",
			description: "Apply postgres store migrations (-status to list pending)",
			run:         runMigrations,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: ledgerly <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-16s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
