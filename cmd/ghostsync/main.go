package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"ghostsync/cli/internal/application"
	"ghostsync/cli/internal/command"
	"ghostsync/cli/internal/config"
	"ghostsync/cli/internal/global"
	"ghostsync/cli/internal/logging"
)

var version = "dev"

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := command.BuildApp(command.Deps{
		LoadConfig: config.LoadConfig,
		RunServe:   runServe,
		RunTunnel: func(ctx context.Context, cfg config.Config, port int, out io.Writer) error {
			logger, closer := newRuntimeLogger(cfg, os.Stderr)
			defer closer.Close()
			return application.ExposePort(ctx, cfg, port, out, logger)
		},
		RunPorts: func(ctx context.Context, _ config.Config, out io.Writer) error {
			return application.ListDevPorts(ctx, out)
		},
		RunWindows: func(_ context.Context, cfg config.Config, out io.Writer) error {
			logger, closer := newRuntimeLogger(cfg, os.Stderr)
			defer closer.Close()
			backend, err := newBackend(logger)
			if err != nil {
				return err
			}
			return application.ListWindows(cfg, backend, out)
		},
		RunHistory: func(_ context.Context, cfg config.Config, limit int, out io.Writer) error {
			return application.ShowHistory(cfg, limit, out)
		},
		RunTargets: application.ListTargets,
		Version:    version,
	})

	if err := app.RunContext(rootCtx, os.Args); err != nil {
		logging.NewLogger(logging.Options{Level: "error", Writer: os.Stderr, Component: "ghostsync"}).Error("ghostsync failed", "err", err)
		os.Exit(1)
	}
}

// newRuntimeLogger logs JSON to w and appends to logs/ghostsync.log under the config dir.
func newRuntimeLogger(cfg config.Config, w io.Writer) (*slog.Logger, io.Closer) {
	opts := logging.Options{Level: cfg.LogLevel, Writer: w, Component: "ghostsync"}
	if cfg.ConfigDir != "" {
		opts.FilePath = filepath.Join(global.LogsDir(cfg.ConfigDir), "ghostsync.log")
	}
	logger, closer, err := logging.NewFileLogger(opts)
	if err != nil {
		logger.Warn("log file unavailable", "path", opts.FilePath, "err", err)
	}
	return logger, closer
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger, closer := newRuntimeLogger(cfg, os.Stderr)
	defer closer.Close()
	if cfg.EnvFile != "" {
		logger.Info("configuration loaded", "env_file", cfg.EnvFile)
	}

	backend, err := newBackend(logger)
	if err != nil {
		return err
	}
	app, err := application.StartApplication(ctx, application.StartOptions{
		Config:  cfg,
		Logger:  logger.With("module", "serve"),
		Backend: backend,
	})
	if err != nil {
		return err
	}
	return app.Run(ctx)
}
