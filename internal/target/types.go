package target

import (
	"context"
	"time"

	"ghostsync/cli/internal/global"
)

// Profile is everything the automation needs to know about one desktop app.
type Profile struct {
	ID               string
	Executable       string
	WindowTitle      string
	LaunchSettle     time.Duration
	InlineChatHotkey []string
	InputXRatio      float64
	InputYRatio      float64

	MonitorInterval time.Duration
	StableFor       time.Duration
	PromptInterval  time.Duration
	Deadline        time.Duration

	TunnelBinary string
}

// Target is implemented by each app-specific package.
type Target interface {
	ID() string
	DefaultProfile() Profile
	IsAvailable(ctx context.Context, p Profile) (bool, error)
	LaunchArgs(projectPath string) []string
}

// Config converts p to its on-disk form.
func (p Profile) Config() global.ProfileConfig {
	return global.ProfileConfig{
		App:                 p.ID,
		Executable:          p.Executable,
		WindowTitle:         p.WindowTitle,
		LaunchSettleSeconds: int(p.LaunchSettle / time.Second),
		Input: global.InputConfig{
			InlineChatHotkey: append([]string(nil), p.InlineChatHotkey...),
			XRatio:           p.InputXRatio,
			YRatio:           p.InputYRatio,
		},
		Monitor: global.MonitorConfig{
			IntervalMillis:        int(p.MonitorInterval / time.Millisecond),
			StableSeconds:         int(p.StableFor / time.Second),
			PromptIntervalSeconds: int(p.PromptInterval / time.Second),
			DeadlineSeconds:       int(p.Deadline / time.Second),
		},
		Tunnel: global.TunnelConfig{Binary: p.TunnelBinary},
	}
}

// ProfileFromConfig is the inverse of Profile.Config.
func ProfileFromConfig(cfg global.ProfileConfig) Profile {
	return Profile{
		ID:               cfg.App,
		Executable:       cfg.Executable,
		WindowTitle:      cfg.WindowTitle,
		LaunchSettle:     time.Duration(cfg.LaunchSettleSeconds) * time.Second,
		InlineChatHotkey: append([]string(nil), cfg.Input.InlineChatHotkey...),
		InputXRatio:      cfg.Input.XRatio,
		InputYRatio:      cfg.Input.YRatio,
		MonitorInterval:  time.Duration(cfg.Monitor.IntervalMillis) * time.Millisecond,
		StableFor:        time.Duration(cfg.Monitor.StableSeconds) * time.Second,
		PromptInterval:   time.Duration(cfg.Monitor.PromptIntervalSeconds) * time.Second,
		Deadline:         time.Duration(cfg.Monitor.DeadlineSeconds) * time.Second,
		TunnelBinary:     cfg.Tunnel.Binary,
	}
}

// CommonDefaults holds the timings and input layout shared by the VS Code family.
func CommonDefaults(id, executable, title string) Profile {
	return Profile{
		ID:               id,
		Executable:       executable,
		WindowTitle:      title,
		LaunchSettle:     5 * time.Second,
		InlineChatHotkey: []string{"ctrl", "i"},
		InputXRatio:      0.75,
		InputYRatio:      0.85,
		MonitorInterval:  time.Second,
		StableFor:        3 * time.Second,
		PromptInterval:   4 * time.Second,
		Deadline:         180 * time.Second,
	}
}
