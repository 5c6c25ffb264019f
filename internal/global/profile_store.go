package global

import (
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	profileTOMLFileName = "profile.toml"
)

// ProfileConfig is the on-disk override of the target application profile.
// Zero values mean "use the built-in default".
type ProfileConfig struct {
	App                 string        `json:"app" toml:"app"`
	Executable          string        `json:"executable" toml:"executable"`
	WindowTitle         string        `json:"window_title" toml:"window_title"`
	LaunchSettleSeconds int           `json:"launch_settle_seconds" toml:"launch_settle_seconds"`
	Input               InputConfig   `json:"input" toml:"input"`
	Monitor             MonitorConfig `json:"monitor" toml:"monitor"`
	Tunnel              TunnelConfig  `json:"tunnel" toml:"tunnel"`
}

type InputConfig struct {
	InlineChatHotkey []string `json:"inline_chat_hotkey" toml:"inline_chat_hotkey"`
	XRatio           float64  `json:"x_ratio" toml:"x_ratio"`
	YRatio           float64  `json:"y_ratio" toml:"y_ratio"`
}

type MonitorConfig struct {
	IntervalMillis        int `json:"interval_ms" toml:"interval_ms"`
	StableSeconds         int `json:"stable_seconds" toml:"stable_seconds"`
	PromptIntervalSeconds int `json:"prompt_interval_seconds" toml:"prompt_interval_seconds"`
	DeadlineSeconds       int `json:"deadline_seconds" toml:"deadline_seconds"`
}

type TunnelConfig struct {
	Binary string `json:"binary,omitempty" toml:"binary,omitempty"`
}

type ProfileStore struct {
	dir string
}

func NewProfileStore(dir string) *ProfileStore {
	return &ProfileStore{dir: dir}
}

func (s *ProfileStore) Path() string {
	return filepath.Join(s.dir, profileTOMLFileName)
}

// LoadOrInit reads profile.toml, filling unset fields from defaults. A missing file is created from defaults.
func (s *ProfileStore) LoadOrInit(defaults ProfileConfig) (ProfileConfig, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return ProfileConfig{}, err
	}

	path := s.Path()
	if b, err := os.ReadFile(path); err == nil {
		var cfg ProfileConfig
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return ProfileConfig{}, err
		}
		return normalizeProfile(cfg, defaults), nil
	} else if !os.IsNotExist(err) {
		return ProfileConfig{}, err
	}

	cfg := normalizeProfile(defaults, defaults)
	if err := writeTOMLAtomically(path, cfg); err != nil {
		return ProfileConfig{}, err
	}
	return cfg, nil
}

func (s *ProfileStore) Save(cfg ProfileConfig) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return writeTOMLAtomically(s.Path(), cfg)
}

func normalizeProfile(cfg, defaults ProfileConfig) ProfileConfig {
	cfg.App = strings.ToLower(strings.TrimSpace(cfg.App))
	if cfg.App == "" {
		cfg.App = defaults.App
	}
	cfg.Executable = strings.TrimSpace(cfg.Executable)
	if cfg.Executable == "" {
		cfg.Executable = defaults.Executable
	}
	if strings.TrimSpace(cfg.WindowTitle) == "" {
		cfg.WindowTitle = defaults.WindowTitle
	}
	if cfg.LaunchSettleSeconds <= 0 {
		cfg.LaunchSettleSeconds = defaults.LaunchSettleSeconds
	}
	if len(cfg.Input.InlineChatHotkey) == 0 {
		cfg.Input.InlineChatHotkey = append([]string(nil), defaults.Input.InlineChatHotkey...)
	}
	if !validRatio(cfg.Input.XRatio) {
		cfg.Input.XRatio = defaults.Input.XRatio
	}
	if !validRatio(cfg.Input.YRatio) {
		cfg.Input.YRatio = defaults.Input.YRatio
	}
	if cfg.Monitor.IntervalMillis <= 0 {
		cfg.Monitor.IntervalMillis = defaults.Monitor.IntervalMillis
	}
	if cfg.Monitor.StableSeconds <= 0 {
		cfg.Monitor.StableSeconds = defaults.Monitor.StableSeconds
	}
	if cfg.Monitor.PromptIntervalSeconds <= 0 {
		cfg.Monitor.PromptIntervalSeconds = defaults.Monitor.PromptIntervalSeconds
	}
	if cfg.Monitor.DeadlineSeconds <= 0 {
		cfg.Monitor.DeadlineSeconds = defaults.Monitor.DeadlineSeconds
	}
	cfg.Tunnel.Binary = strings.TrimSpace(cfg.Tunnel.Binary)
	return cfg
}

func validRatio(v float64) bool {
	return v > 0 && v < 1
}

func writeTOMLAtomically(path string, v any) error {
	b, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
