package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/migchat-gateway/internal/app"
	"github.com/vovakirdan/migchat-gateway/internal/config"
	applog "github.com/vovakirdan/migchat-gateway/internal/log"
)

type rootFlags struct {
	configPath string
	overrides  config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	serve := newServeCmd(flags)
	root := &cobra.Command{
		Use:           "migchat-gateway",
		Short:         "Presence and message fan-out gateway for migchat",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to config file")
	pf.StringVar(&flags.overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&flags.overrides.DBDriver, "db-driver", "", "storage driver (sqlite, postgres)")
	pf.StringVar(&flags.overrides.DBDSN, "db-dsn", "", "storage DSN or sqlite file path")

	root.Flags().AddFlagSet(serve.Flags())
	root.AddCommand(serve, newReconcileCmd(flags), newTokenCmd(flags))
	return root
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}

			application, err := app.New(cmd.Context(), &cfg, logger)
			if err != nil {
				return err
			}

			logger.Info().Str("addr", cfg.Addr).Msg("starting migchat gateway")
			if err := application.Run(cmd.Context()); err != nil {
				return fmt.Errorf("server exited with error: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.overrides.Addr, "addr", "", "HTTP listen address")
	f.DurationVar(&flags.overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	f.DurationVar(&flags.overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	return cmd
}

func newReconcileCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Mark every user persisted as online offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}

			n, err := app.Reconcile(cmd.Context(), &cfg, logger)
			if err != nil {
				return err
			}
			logger.Info().Int64("users", n).Msg("presence reconciled")
			return nil
		},
	}
}

func newTokenCmd(flags *rootFlags) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a JWT for an existing user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}

			token, err := app.IssueToken(cmd.Context(), &cfg, logger, userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to issue the token for")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// loadConfig resolves configuration and builds the logger it asks for.
// Flags override the file and the environment.
func loadConfig(flags *rootFlags) (config.Config, *zerolog.Logger, error) {
	bootstrap := applog.NewWithOptions(applog.Options{Level: flags.overrides.LogLevel, Out: os.Stderr})

	cfg, path, err := config.Load(bootstrap, flags.configPath)
	if err != nil {
		return cfg, bootstrap, err
	}
	cfg.UpdateFrom(flags.overrides)

	logger := applog.NewWithOptions(applog.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Debug().Str("path", path).Msg("config loaded")
	return cfg, logger, nil
}
