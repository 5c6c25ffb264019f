package application

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ghostsync/cli/internal/config"
	"ghostsync/cli/internal/desktop"
	"ghostsync/cli/internal/desktop/desktoptest"
	"ghostsync/cli/internal/global"
)

type idleTelegram struct {
	updates chan tgbotapi.Update
}

func (t *idleTelegram) Send(tgbotapi.Chattable) (tgbotapi.Message, error) {
	return tgbotapi.Message{}, nil
}

func (t *idleTelegram) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (t *idleTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return t.updates
}

func (t *idleTelegram) StopReceivingUpdates() {}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		ConfigDir:             t.TempDir(),
		TargetApp:             "antigravity",
		MaxRequestsPerMinute:  10,
		TunnelTimeout:         30 * time.Minute,
		ScreenshotAutoDelete:  true,
		PromptDecision:        config.PromptDecisionAuto,
		PromptDecisionTimeout: time.Minute,
	}
}

func TestStartApplication_RequiresBackend(t *testing.T) {
	if _, err := StartApplication(context.Background(), StartOptions{Config: testConfig(t)}); err == nil {
		t.Fatalf("expected missing backend error")
	}
}

func TestStartApplication_UnknownTarget(t *testing.T) {
	cfg := testConfig(t)
	cfg.TargetApp = "notepad"
	_, err := StartApplication(context.Background(), StartOptions{Config: cfg, Backend: desktoptest.New(), Telegram: &idleTelegram{}})
	if err == nil || !strings.Contains(err.Error(), "notepad") {
		t.Fatalf("expected unknown target error, got %v", err)
	}
}

func TestStartApplication_RunsUntilCancelled(t *testing.T) {
	cfg := testConfig(t)
	app, err := StartApplication(context.Background(), StartOptions{
		Config:   cfg,
		Backend:  desktoptest.New(),
		Telegram: &idleTelegram{updates: make(chan tgbotapi.Update)},
	})
	if err != nil {
		t.Fatalf("StartApplication failed: %v", err)
	}
	if app.LocalAPIAddr() != "" {
		t.Fatalf("local api should be disabled, got %q", app.LocalAPIAddr())
	}
	if app.Profile().WindowTitle != "Antigravity" {
		t.Fatalf("unexpected profile %+v", app.Profile())
	}
	if _, err := os.Stat(filepath.Join(cfg.ConfigDir, "profile.toml")); err != nil {
		t.Fatalf("expected profile.toml written: %v", err)
	}
	if _, err := os.Stat(global.DBPath(cfg.ConfigDir)); err != nil {
		t.Fatalf("expected history db created: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestListWindows(t *testing.T) {
	cfg := testConfig(t)
	fake := desktoptest.New()
	fake.AddWindow(42, "main.go - Antigravity", desktop.Rect{Left: 10, Top: 20, Width: 800, Height: 600})

	var out bytes.Buffer
	if err := ListWindows(cfg, fake, &out); err != nil {
		t.Fatalf("ListWindows failed: %v", err)
	}
	if !strings.Contains(out.String(), "800") || !strings.Contains(out.String(), "HANDLE") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}

	err := ListWindows(cfg, desktoptest.New(), &out)
	if !errors.Is(err, desktop.ErrWindowNotFound) {
		t.Fatalf("expected ErrWindowNotFound, got %v", err)
	}
}

func TestShowHistory_Empty(t *testing.T) {
	var out bytes.Buffer
	if err := ShowHistory(testConfig(t), 5, &out); err != nil {
		t.Fatalf("ShowHistory failed: %v", err)
	}
	if !strings.HasPrefix(out.String(), "STARTED") {
		t.Fatalf("expected header only, got %q", out.String())
	}
}

func TestListTargets(t *testing.T) {
	var out bytes.Buffer
	if err := ListTargets(context.Background(), testConfig(t), &out); err != nil {
		t.Fatalf("ListTargets failed: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "antigravity") || !strings.Contains(text, "code") {
		t.Fatalf("expected both targets, got:\n%s", text)
	}
}

func TestExposePort_RejectsInvalidPort(t *testing.T) {
	var out bytes.Buffer
	if err := ExposePort(context.Background(), testConfig(t), 70000, &out, nil); err == nil {
		t.Fatalf("expected invalid port error")
	}
}

func TestClip(t *testing.T) {
	if got := clip("abcdef", 4); got != "abc…" {
		t.Fatalf("unexpected clip %q", got)
	}
	if got := clip("abc", 4); got != "abc" {
		t.Fatalf("unexpected clip %q", got)
	}
}
