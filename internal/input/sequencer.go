package input

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ghostsync/cli/internal/desktop"
	"ghostsync/cli/internal/screen"
)

var ErrFocus = errors.New("focus sequence failed")

// Layout locates the chat input inside the target window.
type Layout struct {
	WindowTitle      string
	InlineChatHotkey []string
	XRatio           float64
	YRatio           float64
}

// Delays are the settle pauses between steps.
type Delays struct {
	AfterFocus  time.Duration
	AfterClick  time.Duration
	AfterHotkey time.Duration
	AfterClear  time.Duration
	AfterPaste  time.Duration
	AfterSubmit time.Duration
}

func DefaultDelays() Delays {
	return Delays{
		AfterFocus:  500 * time.Millisecond,
		AfterClick:  300 * time.Millisecond,
		AfterHotkey: time.Second,
		AfterClear:  200 * time.Millisecond,
		AfterPaste:  500 * time.Millisecond,
		AfterSubmit: 500 * time.Millisecond,
	}
}

type Sequencer struct {
	windows   desktop.WindowController
	input     desktop.Input
	clipboard desktop.Clipboard
	screen    desktop.Screen
	shots     *screen.Shots
	layout    Layout
	delays    Delays
	logger    *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewSequencer(backend desktop.Backend, shots *screen.Shots, layout Layout, delays Delays, logger *slog.Logger) *Sequencer {
	if len(layout.InlineChatHotkey) == 0 {
		layout.InlineChatHotkey = []string{desktop.KeyCtrl, "i"}
	}
	if layout.XRatio <= 0 || layout.XRatio >= 1 {
		layout.XRatio = 0.75
	}
	if layout.YRatio <= 0 || layout.YRatio >= 1 {
		layout.YRatio = 0.85
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequencer{
		windows:   backend,
		input:     backend,
		clipboard: backend,
		screen:    backend,
		shots:     shots,
		layout:    layout,
		delays:    delays,
		logger:    logger.With("module", "input"),
		sleep:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func stepErr(step string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrFocus, step)
	}
	return fmt.Errorf("%w: %s: %v", ErrFocus, step, err)
}

// Deliver types text into the target's chat input and submits it. It returns
// the window handle actually used, which differs from h when h went stale.
func (s *Sequencer) Deliver(ctx context.Context, h desktop.Handle, text string) (desktop.Handle, error) {
	h, err := s.revalidate(h)
	if err != nil {
		return 0, err
	}
	rect, err := s.windows.Geometry(h)
	if err != nil {
		return h, stepErr("geometry", err)
	}
	s.logger.Info("delivering prompt", "window", h.String(), "chars", len([]rune(text)),
		"left", rect.Left, "top", rect.Top, "width", rect.Width, "height", rect.Height)

	if !s.windows.Focus(h) {
		return h, stepErr("foreground", nil)
	}
	if err := s.sleep(ctx, s.delays.AfterFocus); err != nil {
		return h, err
	}

	center := rect.Center()
	if err := s.input.Click(center.X, center.Y, 1); err != nil {
		return h, stepErr("click centre", err)
	}
	if err := s.sleep(ctx, s.delays.AfterClick); err != nil {
		return h, err
	}

	if err := s.input.Hotkey(s.layout.InlineChatHotkey...); err != nil {
		return h, stepErr("open inline chat", err)
	}
	if err := s.sleep(ctx, s.delays.AfterHotkey); err != nil {
		return h, err
	}

	target := rect.PointAt(s.layout.XRatio, s.layout.YRatio)
	if err := s.input.Click(target.X, target.Y, 1); err != nil {
		return h, stepErr("click input", err)
	}
	if err := s.sleep(ctx, s.delays.AfterClick); err != nil {
		return h, err
	}

	if err := s.input.Click(target.X, target.Y, 3); err != nil {
		return h, stepErr("select input", err)
	}
	if err := s.sleep(ctx, s.delays.AfterClear); err != nil {
		return h, err
	}
	if err := s.input.Press(desktop.KeyDelete); err != nil {
		return h, stepErr("clear input", err)
	}
	if err := s.sleep(ctx, s.delays.AfterClear); err != nil {
		return h, err
	}

	if err := s.clipboard.SetText(text); err != nil {
		return h, stepErr("set clipboard", err)
	}
	if err := s.input.Hotkey(desktop.KeyCtrl, "v"); err != nil {
		return h, stepErr("paste", err)
	}
	if err := s.sleep(ctx, s.delays.AfterPaste); err != nil {
		return h, err
	}

	s.saveVerification(ctx)

	if err := s.input.Press(desktop.KeyEnter); err != nil {
		return h, stepErr("submit", err)
	}
	if err := s.sleep(ctx, s.delays.AfterSubmit); err != nil {
		return h, err
	}
	s.logger.Info("prompt submitted", "window", h.String())
	return h, nil
}

func (s *Sequencer) revalidate(h desktop.Handle) (desktop.Handle, error) {
	if h != 0 && s.windows.IsValid(h) {
		return h, nil
	}
	s.logger.Info("window handle stale, searching by title", "title", s.layout.WindowTitle)
	handles, err := s.windows.FindWindows(s.layout.WindowTitle)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", desktop.ErrWindowNotFound, err)
	}
	if len(handles) == 0 {
		return 0, desktop.ErrWindowNotFound
	}
	return handles[0], nil
}

// saveVerification keeps a frame of the pasted text for troubleshooting. It is never validated.
func (s *Sequencer) saveVerification(ctx context.Context) {
	if s.shots == nil {
		return
	}
	frame, err := s.screen.Capture(ctx)
	if err != nil {
		s.logger.Warn("verification capture failed", "err", err)
		return
	}
	if _, err := s.shots.SaveVerify(frame); err != nil {
		s.logger.Warn("verification save failed", "err", err)
	}
}
