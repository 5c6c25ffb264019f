package input

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"ghostsync/cli/internal/desktop"
	"ghostsync/cli/internal/desktop/desktoptest"
	"ghostsync/cli/internal/screen"
)

func newTestSequencer(t *testing.T, fake *desktoptest.Fake) (*Sequencer, string) {
	t.Helper()
	dir := t.TempDir()
	s := NewSequencer(fake, screen.NewShots(dir), Layout{WindowTitle: "Antigravity"}, Delays{}, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	s.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return s, dir
}

func TestDeliver_RunsStepsInOrder(t *testing.T) {
	fake := desktoptest.New()
	fake.AddWindow(7, "main.go - Antigravity", desktop.Rect{Left: 100, Top: 50, Width: 1000, Height: 800})
	s, dir := newTestSequencer(t, fake)

	h, err := s.Deliver(context.Background(), 7, "add a login page")
	if err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if h != 7 {
		t.Fatalf("unexpected handle: %v", h)
	}
	want := []string{
		"focus 7",
		"click 600,450 x1",
		"hotkey ctrl+i",
		"click 850,730 x1",
		"click 850,730 x3",
		"press delete",
		"clipboard set",
		"hotkey ctrl+v",
		"capture",
		"press enter",
	}
	if got := fake.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected call order:\n got %v\nwant %v", got, want)
	}
	if fake.Clip != "add a login page" {
		t.Fatalf("unexpected clipboard: %q", fake.Clip)
	}
	if _, err := os.Stat(filepath.Join(dir, "verify_prompt.png")); err != nil {
		t.Fatalf("expected verification screenshot: %v", err)
	}
}

func TestDeliver_ReenumeratesStaleHandle(t *testing.T) {
	fake := desktoptest.New()
	fake.AddWindow(9, "Antigravity", desktop.Rect{Width: 800, Height: 600})
	s, _ := newTestSequencer(t, fake)

	h, err := s.Deliver(context.Background(), 3, "hi")
	if err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if h != 9 {
		t.Fatalf("expected re-enumerated handle 9, got %v", h)
	}
	if calls := fake.Calls(); calls[0] != "find Antigravity" {
		t.Fatalf("expected search by title first, got %v", calls)
	}
}

func TestDeliver_NoWindow(t *testing.T) {
	fake := desktoptest.New()
	s, _ := newTestSequencer(t, fake)
	if _, err := s.Deliver(context.Background(), 0, "hi"); !errors.Is(err, desktop.ErrWindowNotFound) {
		t.Fatalf("expected ErrWindowNotFound, got %v", err)
	}
	for _, c := range fake.Calls() {
		if c == "clipboard set" || c == "press enter" {
			t.Fatalf("no input expected without a window, got %v", fake.Calls())
		}
	}
}

func TestDeliver_FocusFailureAborts(t *testing.T) {
	fake := desktoptest.New()
	fake.AddWindow(7, "Antigravity", desktop.Rect{Width: 800, Height: 600})
	fake.FocusFail = true
	s, _ := newTestSequencer(t, fake)

	_, err := s.Deliver(context.Background(), 7, "hi")
	if !errors.Is(err, ErrFocus) {
		t.Fatalf("expected ErrFocus, got %v", err)
	}
	if calls := fake.Calls(); len(calls) != 1 {
		t.Fatalf("expected to stop after focus, got %v", calls)
	}
}

func TestDeliver_StepErrorNamesStep(t *testing.T) {
	fake := desktoptest.New()
	fake.AddWindow(7, "Antigravity", desktop.Rect{Width: 800, Height: 600})
	fake.Fail["hotkey ctrl+v"] = errors.New("xdotool missing")
	s, _ := newTestSequencer(t, fake)

	_, err := s.Deliver(context.Background(), 7, "hi")
	if !errors.Is(err, ErrFocus) {
		t.Fatalf("expected ErrFocus, got %v", err)
	}
	if got := err.Error(); got != "focus sequence failed: paste: xdotool missing" {
		t.Fatalf("unexpected error text: %s", got)
	}
	for _, c := range fake.Calls() {
		if c == "press enter" {
			t.Fatal("submit must not run after a failed step")
		}
	}
}

func TestDeliver_CustomLayout(t *testing.T) {
	fake := desktoptest.New()
	fake.AddWindow(7, "Code", desktop.Rect{Width: 1000, Height: 1000})
	s := NewSequencer(fake, nil, Layout{WindowTitle: "Code", InlineChatHotkey: []string{"ctrl", "shift", "i"}, XRatio: 0.5, YRatio: 0.9}, Delays{}, nil)
	s.sleep = func(ctx context.Context, _ time.Duration) error { return nil }

	if _, err := s.Deliver(context.Background(), 7, "hi"); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	calls := fake.Calls()
	if calls[2] != "hotkey ctrl+shift+i" || calls[3] != "click 500,900 x1" {
		t.Fatalf("custom layout not applied: %v", calls)
	}
}
