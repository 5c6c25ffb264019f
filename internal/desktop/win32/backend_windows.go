//go:build windows

package win32

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"time"

	"ghostsync/cli/internal/desktop"
)

type Backend struct {
	logger *slog.Logger
	sleep  func(time.Duration)

	valid      func(desktop.Handle) bool
	restore    func(desktop.Handle)
	foreground func(desktop.Handle) bool
}

var _ desktop.Backend = (*Backend)(nil)

func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		logger:     logger.With("module", "win32"),
		sleep:      time.Sleep,
		valid:      isWindow,
		restore:    restoreWindow,
		foreground: setForeground,
	}
}

func (b *Backend) Name() string { return "win32" }

func (b *Backend) FindWindows(titleSubstring string) ([]desktop.Handle, error) {
	return enumerateWindows(titleSubstring), nil
}

func (b *Backend) IsValid(h desktop.Handle) bool {
	return h != 0 && b.valid(h)
}

// Focus restores and raises h. A refused SetForegroundWindow is only logged;
// Focus fails for an invalid handle alone.
func (b *Backend) Focus(h desktop.Handle) bool {
	if !b.IsValid(h) {
		return false
	}
	b.restore(h)
	b.sleep(desktop.RestoreSettle)
	if !b.foreground(h) {
		b.logger.Warn("foreground request refused", "window", h.String())
	}
	b.sleep(desktop.ForegroundSettle)
	return b.IsValid(h)
}

func (b *Backend) Geometry(h desktop.Handle) (desktop.Rect, error) {
	return windowRect(h)
}

func (b *Backend) Click(x, y, clicks int) error {
	if err := setCursor(x, y); err != nil {
		return err
	}
	if clicks < 1 {
		clicks = 1
	}
	for i := 0; i < clicks; i++ {
		leftClick()
		time.Sleep(30 * time.Millisecond)
	}
	return nil
}

func (b *Backend) Hotkey(keys ...string) error {
	if len(keys) == 0 {
		return errors.New("hotkey requires at least one key")
	}
	codes := make([]byte, 0, len(keys))
	for _, k := range keys {
		vk, err := virtualKey(k)
		if err != nil {
			return err
		}
		codes = append(codes, vk)
	}
	for _, vk := range codes {
		keyDown(vk)
	}
	for i := len(codes) - 1; i >= 0; i-- {
		keyUp(codes[i])
	}
	return nil
}

func (b *Backend) Press(key string) error {
	vk, err := virtualKey(key)
	if err != nil {
		return err
	}
	keyDown(vk)
	keyUp(vk)
	return nil
}

func (b *Backend) SetText(text string) error {
	return setClipboardText(text)
}

func (b *Backend) Text() (string, error) {
	return clipboardText()
}

func (b *Backend) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return captureScreen()
}

func (b *Backend) Launch(executable string, args ...string) error {
	return desktop.StartDetached(executable, args...)
}
