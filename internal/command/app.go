package command

import (
	"context"
	"errors"
	"io"

	"github.com/urfave/cli/v2"

	"ghostsync/cli/internal/config"
)

type Deps struct {
	LoadConfig func() config.Config
	RunServe   func(context.Context, config.Config) error
	RunTunnel  func(ctx context.Context, cfg config.Config, port int, out io.Writer) error
	RunPorts   func(ctx context.Context, cfg config.Config, out io.Writer) error
	RunWindows func(ctx context.Context, cfg config.Config, out io.Writer) error
	RunHistory func(ctx context.Context, cfg config.Config, limit int, out io.Writer) error
	RunTargets func(ctx context.Context, cfg config.Config, out io.Writer) error
	Version    string
}

func BuildApp(deps Deps) *cli.App {
	return &cli.App{
		Name:    "ghostsync",
		Usage:   "drive a desktop coding app from Telegram",
		Version: deps.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Usage: "target app id (overrides TARGET_APP)"},
		},
		Action: func(ctx *cli.Context) error {
			return runServe(ctx, deps)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the Telegram bridge and the local status API",
				Action: func(ctx *cli.Context) error {
					return runServe(ctx, deps)
				},
			},
			{
				Name:  "tunnel",
				Usage: "expose a local port through a quick tunnel until interrupted",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Required: true, Usage: "local port"},
				},
				Action: func(ctx *cli.Context) error {
					if deps.RunTunnel == nil {
						return errors.New("tunnel runner is not configured")
					}
					return deps.RunTunnel(ctx.Context, loadConfig(ctx, deps), ctx.Int("port"), ctx.App.Writer)
				},
			},
			{
				Name:  "ports",
				Usage: "show which dev-server ports are listening",
				Action: func(ctx *cli.Context) error {
					if deps.RunPorts == nil {
						return errors.New("ports runner is not configured")
					}
					return deps.RunPorts(ctx.Context, loadConfig(ctx, deps), ctx.App.Writer)
				},
			},
			{
				Name:  "windows",
				Usage: "list windows of the target app",
				Action: func(ctx *cli.Context) error {
					if deps.RunWindows == nil {
						return errors.New("windows runner is not configured")
					}
					return deps.RunWindows(ctx.Context, loadConfig(ctx, deps), ctx.App.Writer)
				},
			},
			{
				Name:  "history",
				Usage: "show recent prompt runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "number of runs"},
				},
				Action: func(ctx *cli.Context) error {
					if deps.RunHistory == nil {
						return errors.New("history runner is not configured")
					}
					return deps.RunHistory(ctx.Context, loadConfig(ctx, deps), ctx.Int("limit"), ctx.App.Writer)
				},
			},
			{
				Name:  "targets",
				Usage: "list supported target apps",
				Action: func(ctx *cli.Context) error {
					if deps.RunTargets == nil {
						return errors.New("targets runner is not configured")
					}
					return deps.RunTargets(ctx.Context, loadConfig(ctx, deps), ctx.App.Writer)
				},
			},
		},
	}
}

func loadConfig(ctx *cli.Context, deps Deps) config.Config {
	var cfg config.Config
	if deps.LoadConfig != nil {
		cfg = deps.LoadConfig()
	} else {
		cfg = config.LoadConfig()
	}
	if t := ctx.String("target"); t != "" {
		cfg.TargetApp = t
	}
	return cfg
}

func runServe(ctx *cli.Context, deps Deps) error {
	if deps.RunServe == nil {
		return errors.New("serve runner is not configured")
	}
	return deps.RunServe(ctx.Context, loadConfig(ctx, deps))
}
