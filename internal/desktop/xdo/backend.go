package xdo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ghostsync/cli/internal/desktop"
)

// Backend drives an X11 session through xdotool, xclip and ImageMagick's import.
type Backend struct {
	exec   Exec
	logger *slog.Logger
	sleep  func(time.Duration)
}

var _ desktop.Backend = (*Backend)(nil)

func New(e Exec, logger *slog.Logger) *Backend {
	if e == nil {
		e = &RealExec{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{exec: e, logger: logger.With("module", "xdo"), sleep: time.Sleep}
}

func (b *Backend) Name() string { return "xdotool" }

func (b *Backend) FindWindows(titleSubstring string) ([]desktop.Handle, error) {
	out, err := b.exec.Output("xdotool", "search", "--onlyvisible", "--name", regexp.QuoteMeta(titleSubstring))
	if err != nil {
		// xdotool exits 1 with empty output when nothing matches.
		if strings.TrimSpace(string(out)) == "" {
			return []desktop.Handle{}, nil
		}
		return nil, err
	}
	// xdotool matches names case-insensitively; keep exact-case hits only.
	handles := []desktop.Handle{}
	for _, h := range parseHandles(string(out)) {
		name, err := b.exec.Output("xdotool", "getwindowname", h.String())
		if err != nil {
			continue
		}
		if strings.Contains(string(name), titleSubstring) {
			handles = append(handles, h)
		}
	}
	return handles, nil
}

func parseHandles(text string) []desktop.Handle {
	handles := []desktop.Handle{}
	for _, line := range strings.Split(text, "\n") {
		id, err := strconv.ParseUint(strings.TrimSpace(line), 10, 64)
		if err != nil || id == 0 {
			continue
		}
		handles = append(handles, desktop.Handle(id))
	}
	return handles
}

func (b *Backend) IsValid(h desktop.Handle) bool {
	if h == 0 {
		return false
	}
	_, err := b.exec.Output("xdotool", "getwindowname", h.String())
	return err == nil
}

// Focus maps and activates h. A refused activation is only logged; Focus
// fails for an invalid handle alone.
func (b *Backend) Focus(h desktop.Handle) bool {
	if !b.IsValid(h) {
		return false
	}
	if err := b.exec.Run("xdotool", "windowmap", h.String()); err != nil {
		b.logger.Debug("windowmap failed", "window", h.String(), "err", err)
	}
	b.sleep(desktop.RestoreSettle)
	if err := b.exec.Run("xdotool", "windowactivate", "--sync", h.String()); err != nil {
		b.logger.Warn("window activation refused", "window", h.String(), "err", err)
	}
	b.sleep(desktop.ForegroundSettle)
	return b.IsValid(h)
}

func (b *Backend) Geometry(h desktop.Handle) (desktop.Rect, error) {
	out, err := b.exec.Output("xdotool", "getwindowgeometry", "--shell", h.String())
	if err != nil {
		return desktop.Rect{}, err
	}
	return parseGeometry(string(out))
}

func parseGeometry(text string) (desktop.Rect, error) {
	values := map[string]int{}
	for _, line := range strings.Split(text, "\n") {
		key, raw, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		values[key] = n
	}
	for _, key := range []string{"X", "Y", "WIDTH", "HEIGHT"} {
		if _, ok := values[key]; !ok {
			return desktop.Rect{}, fmt.Errorf("window geometry missing %s", key)
		}
	}
	return desktop.Rect{Left: values["X"], Top: values["Y"], Width: values["WIDTH"], Height: values["HEIGHT"]}, nil
}

func (b *Backend) Click(x, y, clicks int) error {
	if clicks < 1 {
		clicks = 1
	}
	return b.exec.Run("xdotool", "mousemove", strconv.Itoa(x), strconv.Itoa(y), "click", "--repeat", strconv.Itoa(clicks), "1")
}

func (b *Backend) Hotkey(keys ...string) error {
	if len(keys) == 0 {
		return errors.New("hotkey requires at least one key")
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, keysym(k))
	}
	return b.exec.Run("xdotool", "key", "--clearmodifiers", strings.Join(names, "+"))
}

func (b *Backend) Press(key string) error {
	return b.exec.Run("xdotool", "key", "--clearmodifiers", keysym(key))
}

func keysym(key string) string {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case desktop.KeyCtrl:
		return "ctrl"
	case desktop.KeyShift:
		return "shift"
	case desktop.KeyAlt:
		return "alt"
	case desktop.KeyEnter:
		return "Return"
	case desktop.KeyDelete:
		return "Delete"
	default:
		return strings.ToLower(strings.TrimSpace(key))
	}
}

func (b *Backend) SetText(text string) error {
	return b.exec.RunWithInput([]byte(text), "xclip", "-selection", "clipboard")
}

func (b *Backend) Text() (string, error) {
	out, err := b.exec.Output("xclip", "-selection", "clipboard", "-o")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (b *Backend) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := b.exec.Output("import", "-silent", "-window", "root", "png:-")
	if err != nil {
		return nil, fmt.Errorf("capture screen: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decode screen capture: %w", err)
	}
	return img, nil
}

func (b *Backend) Launch(executable string, args ...string) error {
	return desktop.StartDetached(executable, args...)
}
