package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/relief/internal/bootstrap"
	"github.com/JonMunkholm/relief/internal/config"
	"github.com/JonMunkholm/relief/internal/core"
	"github.com/JonMunkholm/relief/internal/logging"
)

// App holds the CLI state shared by all commands.
type App struct {
	stdout io.Writer
	stdin  io.Reader

	actorID  string
	logLevel string

	// open builds the runtime; tests replace it.
	open func(ctx context.Context, cfg *config.Config) (*bootstrap.Runtime, error)

	rt             *bootstrap.Runtime
	stopBackground func()
}

// Execute runs the CLI with args.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.stdout)

	err := root.ExecuteContext(ctx)
	a.teardown()
	return err
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "reliefctl",
		Short: "Import and export relief CSV families",
		Long: `reliefctl reconciles relief CSV files into the configured store and
exports families back to CSV. It reads the same environment (and .env file)
as the server and acts with super_admin rights.`,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	root.PersistentFlags().StringVar(&a.actorID, "actor", "reliefctl", "actor id recorded in audit events")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")

	root.AddCommand(
		a.familiesCommand(),
		a.templateCommand(),
		a.importCommand(),
		a.exportCommand(),
	)
	return root
}

// setup loads configuration and opens the runtime before any command runs.
func (a *App) setup(cmd *cobra.Command, _ []string) error {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	logging.Setup(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	open := a.open
	if open == nil {
		open = bootstrap.Open
	}
	rt, err := open(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("open runtime: %w", err)
	}
	a.rt = rt
	a.stopBackground = rt.Background(cmd.Context(), false)
	return nil
}

// teardown flushes audit events and releases the store. It runs even when
// the command failed.
func (a *App) teardown() {
	if a.stopBackground != nil {
		a.stopBackground()
	}
	if a.rt != nil {
		a.rt.Close()
	}
	slog.Debug("reliefctl done")
}

func (a *App) actor() core.Actor {
	return core.Actor{ID: a.actorID, Role: core.RoleSuperAdmin}
}
