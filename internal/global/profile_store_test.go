package global

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testDefaults() ProfileConfig {
	return ProfileConfig{
		App:                 "antigravity",
		Executable:          "antigravity",
		WindowTitle:         "Antigravity",
		LaunchSettleSeconds: 5,
		Input: InputConfig{
			InlineChatHotkey: []string{"ctrl", "i"},
			XRatio:           0.75,
			YRatio:           0.85,
		},
		Monitor: MonitorConfig{
			IntervalMillis:        1000,
			StableSeconds:         3,
			PromptIntervalSeconds: 4,
			DeadlineSeconds:       180,
		},
	}
}

func TestProfileStore_LoadOrInit_CreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	store := NewProfileStore(dir)

	cfg, err := store.LoadOrInit(testDefaults())
	if err != nil {
		t.Fatalf("LoadOrInit failed: %v", err)
	}
	if cfg.WindowTitle != "Antigravity" {
		t.Fatalf("expected default window title, got %q", cfg.WindowTitle)
	}

	b, err := os.ReadFile(filepath.Join(dir, "profile.toml"))
	if err != nil {
		t.Fatalf("read profile.toml failed: %v", err)
	}
	text := string(b)
	if !strings.Contains(text, "[input]") || !strings.Contains(text, "[monitor]") {
		t.Fatalf("expected input and monitor tables in toml, got: %s", text)
	}
	if !strings.Contains(text, "x_ratio = 0.75") {
		t.Fatalf("expected x_ratio in toml, got: %s", text)
	}
	if !strings.Contains(text, "deadline_seconds = 180") {
		t.Fatalf("expected deadline_seconds in toml, got: %s", text)
	}
}

func TestProfileStore_LoadOrInit_FillsMissingFieldsFromDefaults(t *testing.T) {
	dir := t.TempDir()
	raw := "window_title = 'My Editor'\n\n[input]\nx_ratio = 0.6\ny_ratio = 1.7\n"
	if err := os.WriteFile(filepath.Join(dir, "profile.toml"), []byte(raw), 0o644); err != nil {
		t.Fatalf("write profile failed: %v", err)
	}

	cfg, err := NewProfileStore(dir).LoadOrInit(testDefaults())
	if err != nil {
		t.Fatalf("LoadOrInit failed: %v", err)
	}
	if cfg.WindowTitle != "My Editor" {
		t.Fatalf("expected custom title, got %q", cfg.WindowTitle)
	}
	if cfg.Input.XRatio != 0.6 {
		t.Fatalf("expected custom x ratio, got %v", cfg.Input.XRatio)
	}
	if cfg.Input.YRatio != 0.85 {
		t.Fatalf("expected out-of-range y ratio replaced by default, got %v", cfg.Input.YRatio)
	}
	if cfg.Monitor.DeadlineSeconds != 180 || cfg.LaunchSettleSeconds != 5 {
		t.Fatalf("expected defaults for unset fields, got %+v", cfg)
	}
	if len(cfg.Input.InlineChatHotkey) != 2 || cfg.Input.InlineChatHotkey[1] != "i" {
		t.Fatalf("expected default hotkey, got %#v", cfg.Input.InlineChatHotkey)
	}
}

func TestProfileStore_LoadOrInit_RejectsBrokenTOML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "profile.toml"), []byte("window_title = "), 0o644); err != nil {
		t.Fatalf("write profile failed: %v", err)
	}
	if _, err := NewProfileStore(dir).LoadOrInit(testDefaults()); err == nil {
		t.Fatal("expected parse error for broken toml")
	}
}
