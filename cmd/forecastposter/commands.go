package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ForecastPoster/internal/app"
	"ForecastPoster/internal/config"
	"ForecastPoster/internal/logging"
	"ForecastPoster/internal/usecase"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "forecastposter",
		Short:         "Posts new tornado forecast runs to Bluesky",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Poll the source on the configured interval",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "once",
			Short: "Run a single cycle and exit",
			Args:  cobra.NoArgs,
			RunE:  runOnce,
		},
		newStateCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}

func newStateCommand() *cobra.Command {
	state := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the last processed run",
	}
	state.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the stored run identifier",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
					id, err := a.LastRun(ctx)
					if err != nil {
						return err
					}
					if id.IsZero() {
						fmt.Fprintln(cmd.OutOrStdout(), "(none)")
						return nil
					}
					fmt.Fprintln(cmd.OutOrStdout(), id)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Clear the stored run so the latest run is posted again",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, func(ctx context.Context, a *app.Application, logger *slog.Logger) error {
					if err := a.ResetState(ctx); err != nil {
						return err
					}
					logger.Info("state cleared")
					return nil
				})
			},
		},
	)
	return state
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
		return a.Run(ctx)
	})
}

func runOnce(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
		res, err := a.RunOnce(ctx)
		if err != nil {
			return err
		}
		if res == usecase.ResultSkipped {
			return fmt.Errorf("cycle skipped")
		}
		return nil
	})
}

// withApp loads configuration, builds the application and runs fn with a
// context cancelled on SIGINT or SIGTERM. Errors are logged before returning.
func withApp(cmd *cobra.Command, fn func(context.Context, *app.Application, *slog.Logger) error) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		File:    cfg.Logging.File,
		Console: cmd.OutOrStdout(),
	})
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}
	defer closeLog()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fn(ctx, application, logger); err != nil {
		logger.Error("application stopped", "error", err)
		return err
	}
	return nil
}
