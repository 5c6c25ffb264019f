package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"text/tabwriter"
	"time"

	"ghostsync/cli/internal/config"
	"ghostsync/cli/internal/db"
	"ghostsync/cli/internal/desktop"
	"ghostsync/cli/internal/global"
	"ghostsync/cli/internal/historydb"
	"ghostsync/cli/internal/logging"
	"ghostsync/cli/internal/target"
	"ghostsync/cli/internal/tunnel"
)

const exposePortWait = 10 * time.Second

func loadTarget(cfg config.Config) (string, target.Target, target.Profile, error) {
	configDir, err := resolveConfigDir(cfg)
	if err != nil {
		return "", nil, target.Profile{}, err
	}
	tgt, profile, err := target.TargetRegistry.Resolve(cfg.TargetApp, global.NewProfileStore(configDir))
	if err != nil {
		return "", nil, target.Profile{}, err
	}
	return configDir, tgt, profile, nil
}

// ExposePort publishes localhost:port through a quick tunnel and keeps it up
// until ctx ends.
func ExposePort(ctx context.Context, cfg config.Config, port int, out io.Writer, logger *slog.Logger) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}
	if logger == nil {
		logger = slog.Default()
	}
	configDir, _, profile, err := loadTarget(cfg)
	if err != nil {
		return err
	}
	mgr := NewTunnelManager(cfg, profile, configDir, logger)
	defer mgr.KillAll()

	if err := mgr.WaitPortOpen(ctx, port, exposePortWait); err != nil {
		if !errors.Is(err, tunnel.ErrPortNeverOpen) {
			return err
		}
		logger.Warn("nothing is listening yet; tunnelling anyway", "port", port)
	}
	url, err := mgr.Create(ctx, port)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "http://localhost:%d -> %s\n", port, url)
	<-ctx.Done()
	return nil
}

// ListDevPorts reports which of the well-known dev-server ports are listening.
func ListDevPorts(ctx context.Context, out io.Writer) error {
	listening, err := tunnel.SystemListeners(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "PORT\tSTATE\n")
	for _, port := range tunnel.DevServerPorts {
		state := "closed"
		if slices.Contains(listening, port) {
			state = "listening"
		}
		fmt.Fprintf(tw, "%d\t%s\n", port, state)
	}
	return tw.Flush()
}

// ListWindows prints the windows matching the configured target title.
func ListWindows(cfg config.Config, backend desktop.WindowController, out io.Writer) error {
	_, tgt, profile, err := loadTarget(cfg)
	if err != nil {
		return err
	}
	handles, err := backend.FindWindows(profile.WindowTitle)
	if err != nil {
		return err
	}
	if len(handles) == 0 {
		return fmt.Errorf("%w: no %q window (title %q)", desktop.ErrWindowNotFound, tgt.ID(), profile.WindowTitle)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "HANDLE\tLEFT\tTOP\tWIDTH\tHEIGHT\n")
	for _, h := range handles {
		r, err := backend.Geometry(h)
		if err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\n", h)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", h, r.Left, r.Top, r.Width, r.Height)
	}
	return tw.Flush()
}

// ShowHistory prints the newest runs.
func ShowHistory(cfg config.Config, limit int, out io.Writer) error {
	configDir, err := resolveConfigDir(cfg)
	if err != nil {
		return err
	}
	gdb, err := db.Open(global.DBPath(configDir))
	if err != nil {
		return err
	}
	defer db.Close(gdb)
	store, err := historydb.NewStore(gdb)
	if err != nil {
		return err
	}
	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "STARTED\tOUTCOME\tPROMPTS\tPROJECT\tPROMPT\tURL\n")
	for _, r := range runs {
		url := r.PublicURL
		if url == "" {
			url = r.LocalURL
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Outcome, r.PromptsResolved,
			r.ProjectPath, clip(logging.Redact(r.Prompt), 40), url)
	}
	return tw.Flush()
}

// ListTargets prints every registered target app and whether it is installed.
func ListTargets(ctx context.Context, cfg config.Config, out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "TARGET\tACTIVE\tINSTALLED\tEXECUTABLE\n")
	for _, t := range target.TargetRegistry.List() {
		p := t.DefaultProfile()
		installed, _ := t.IsAvailable(ctx, p)
		active := ""
		if t.ID() == cfg.TargetApp {
			active = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", t.ID(), active, installed, p.Executable)
	}
	return tw.Flush()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
