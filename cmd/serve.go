package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/typster/internal/config"
	"github.com/conneroisu/typster/internal/errors"
	"github.com/conneroisu/typster/internal/fetch"
	"github.com/conneroisu/typster/internal/logging"
	"github.com/conneroisu/typster/internal/server"
	"github.com/conneroisu/typster/internal/stream"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve lines over a WebSocket feed",
	Long: `Start an HTTP server that streams lines to WebSocket clients.

Every connection to /feed drains its own stream. Each line is sent as
{"type":"line","text":...,"origin":...}; when the registry is exhausted an
{"type":"end"} frame is sent and the connection is closed. /healthz reports
open feeds and lines served.

While running, edits to the configuration file are picked up and the log
level is applied without a restart.

Examples:
  typster serve                  # Serve on localhost:8080
  typster serve --port 9000      # Serve on another port`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	AddFlagValidation(serveCmd.Flags(), "port", ValidatePort)

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if viper.ConfigFileUsed() != "" {
		stopWatch, err := server.WatchConfig(ctx, viper.GetViper(), logger, func(next *config.Config) {
			applyLogLevel(ctx, logger, next)
		})
		if err != nil {
			logger.Warn(ctx, err, "Configuration reload disabled")
		} else {
			defer func() { _ = stopWatch() }()
		}
	}

	return serve(ctx, cfg, logger)
}

// serve runs the feed server until ctx ends.
func serve(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	fetcher, closeFetcher, err := fetch.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeFetcher() }()

	srv := server.New(cfg, func() (*stream.Queue, error) {
		return stream.NewFromConfig(cfg, fetcher, logger)
	}, logger)

	if err := srv.Run(ctx); err != nil {
		return errors.NewEnhancedError("Feed server failed", err,
			errors.ServerStartSuggestions(err, cfg.Server.Port))
	}
	return nil
}

// applyLogLevel applies the one setting that can change without a restart.
func applyLogLevel(ctx context.Context, logger *logging.StructuredLogger, cfg *config.Config) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warn(ctx, err, "Ignoring log level")
		return
	}
	logger.SetLevel(level)
	logger.Info(ctx, "Log level applied", "level", level.String())
}
