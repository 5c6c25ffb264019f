package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ghostsync/cli/internal/automation"
	"ghostsync/cli/internal/bridge"
	"ghostsync/cli/internal/config"
	"ghostsync/cli/internal/db"
	"ghostsync/cli/internal/fsbrowser"
	"ghostsync/cli/internal/global"
	"ghostsync/cli/internal/historydb"
	"ghostsync/cli/internal/input"
	"ghostsync/cli/internal/lifecycle"
	"ghostsync/cli/internal/localapi"
	"ghostsync/cli/internal/ratelimit"
	"ghostsync/cli/internal/screen"
	"ghostsync/cli/internal/session"
	"ghostsync/cli/internal/target"
	_ "ghostsync/cli/internal/target/builtin"
	"ghostsync/cli/internal/telegram"
	"ghostsync/cli/internal/tunnel"
)

const httpShutdownTimeout = 3 * time.Second

// Application is the assembled bridge: Telegram poller, automation, tunnel
// reaper and the optional loopback API, all owned by one lifecycle manager.
type Application struct {
	localAddr string
	profile   target.Profile
	runFn     func(context.Context) error
}

func StartApplication(_ context.Context, opts StartOptions) (*Application, error) {
	if opts.Backend == nil {
		return nil, errors.New("desktop backend is required")
	}
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	configDir, err := resolveConfigDir(cfg)
	if err != nil {
		return nil, err
	}
	registry := opts.Registry
	if registry == nil {
		registry = target.TargetRegistry
	}
	tgt, profile, err := registry.Resolve(cfg.TargetApp, global.NewProfileStore(configDir))
	if err != nil {
		return nil, err
	}
	if ok, _ := tgt.IsAvailable(context.Background(), profile); !ok {
		logger.Warn("target executable not found; opening projects will fail until it is installed", "target", tgt.ID(), "executable", profile.Executable)
	}

	api := opts.Telegram
	if api == nil {
		botAPI, err := telegram.Connect(cfg.TelegramBotToken, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("telegram connected", "bot", botAPI.Self.UserName)
		api = botAPI
	}

	gdb, err := db.Open(global.DBPath(configDir))
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	history, err := historydb.NewStore(gdb)
	if err != nil {
		_ = db.Close(gdb)
		return nil, err
	}

	backend := opts.Backend
	shots := screen.NewShots(global.ScreenshotsDir(configDir))
	tunnels := NewTunnelManager(cfg, profile, configDir, logger)
	sequencer := input.NewSequencer(backend, shots, input.Layout{
		WindowTitle:      profile.WindowTitle,
		InlineChatHotkey: profile.InlineChatHotkey,
		XRatio:           profile.InputXRatio,
		YRatio:           profile.InputYRatio,
	}, input.DefaultDelays(), logger)
	monitor := screen.NewMonitor(backend, backend, backend, screen.ColorDetector{}, shots, logger)
	sessions := session.NewStore()

	var localServer *localapi.Server
	var onEvent automation.EventFunc
	if cfg.LocalAPIAddr != "" {
		localServer = localapi.NewServer(localapi.Deps{
			History:  history,
			Tunnels:  tunnels,
			Sessions: sessions,
			Frames:   shots,
			Logger:   logger,
		})
		onEvent = localServer.Publish
	}

	orchestrator := automation.New(automation.Deps{
		Backend:   backend,
		Target:    tgt,
		Profile:   profile,
		Sequencer: sequencer,
		Monitor:   monitor,
		Tunnels:   tunnels,
		Shots:     shots,
		Logger:    logger,
		OnEvent:   onEvent,
	})

	bot := telegram.New(api, telegram.Options{
		AllowedUserID:   cfg.AllowedUserID,
		AutoDelete:      cfg.ScreenshotAutoDelete,
		DecisionMode:    cfg.PromptDecision,
		DecisionTimeout: cfg.PromptDecisionTimeout,
		Logger:          logger,
	})
	handler := bridge.NewHandler(sessions, ratelimit.New(cfg.MaxRequestsPerMinute, time.Minute), orchestrator, bridge.Options{
		AppName: profile.WindowTitle,
		Status:  bot.ShowStatus,
		Decide:  bot.Decide,
		History: history,
		Paths:   fsbrowser.NewService(),
		Logger:  logger,
	})

	mgr := lifecycle.NewManager(logger)
	mgr.AddShutdown("close-history-db", func(context.Context) error {
		return db.Close(gdb)
	})
	mgr.AddShutdown("kill-tunnels", func(context.Context) error {
		tunnels.KillAll()
		return nil
	})
	mgr.AddRun("telegram", func(ctx context.Context) error {
		return bot.Run(ctx, handler)
	})
	mgr.AddRun("tunnel-reaper", tunnels.RunReaper)

	app := &Application{profile: profile}
	if localServer != nil {
		localServer.SetStatus(orchestrator)
		httpServer := &http.Server{
			Addr:              cfg.LocalAPIAddr,
			Handler:           localServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		mgr.AddRun("local-api", func(runCtx context.Context) error {
			go func() {
				<-runCtx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
				defer cancel()
				_ = httpServer.Shutdown(shutdownCtx)
			}()
			logger.Info("local api listening", "addr", cfg.LocalAPIAddr)
			err := httpServer.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		app.localAddr = cfg.LocalAPIAddr
	}

	logger.Info("ghostsync ready",
		"target", tgt.ID(),
		"backend", backend.Name(),
		"config_dir", configDir,
		"allowed_user_id", cfg.AllowedUserID,
		"max_requests_per_minute", cfg.MaxRequestsPerMinute,
	)
	app.runFn = func(ctx context.Context) error {
		return mgr.StartAndWait(ctx)
	}
	return app, nil
}

func resolveConfigDir(cfg config.Config) (string, error) {
	if dir := strings.TrimSpace(cfg.ConfigDir); dir != "" {
		return dir, nil
	}
	return global.DefaultConfigDir()
}

// NewTunnelManager builds the cloudflared manager shared by serve and the
// tunnel subcommand.
func NewTunnelManager(cfg config.Config, profile target.Profile, configDir string, logger *slog.Logger) *tunnel.Manager {
	return tunnel.NewManager(tunnel.Options{
		BinaryPath: profile.TunnelBinary,
		CacheDir:   global.BinDir(configDir),
		MaxAge:     cfg.TunnelTimeout,
		Logger:     logger,
	})
}

func (a *Application) LocalAPIAddr() string {
	if a == nil {
		return ""
	}
	return a.localAddr
}

func (a *Application) Profile() target.Profile {
	if a == nil {
		return target.Profile{}
	}
	return a.profile
}

func (a *Application) Run(ctx context.Context) error {
	if a == nil || a.runFn == nil {
		return nil
	}
	return a.runFn(ctx)
}
