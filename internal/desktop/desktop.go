package desktop

import (
	"context"
	"errors"
	"image"
	"strconv"
	"time"
)

// Handle is an opaque top-level window identifier (HWND on Windows, X11 window id elsewhere).
type Handle uint64

func (h Handle) String() string {
	return strconv.FormatUint(uint64(h), 10)
}

// Rect holds window bounds in screen coordinates.
type Rect struct {
	Left   int
	Top    int
	Width  int
	Height int
}

func (r Rect) Center() image.Point {
	return image.Pt(r.Left+r.Width/2, r.Top+r.Height/2)
}

// PointAt returns the point at the given fraction of the window size, measured from its top-left corner.
func (r Rect) PointAt(xRatio, yRatio float64) image.Point {
	return image.Pt(r.Left+int(float64(r.Width)*xRatio), r.Top+int(float64(r.Height)*yRatio))
}

// Settle delays applied by Focus after restoring a window and after
// bringing it to the foreground.
const (
	RestoreSettle    = 100 * time.Millisecond
	ForegroundSettle = 300 * time.Millisecond
)

// WindowController enumerates and focuses top-level windows.
// Focus reports false only when the handle is no longer valid.
type WindowController interface {
	FindWindows(titleSubstring string) ([]Handle, error)
	IsValid(h Handle) bool
	Focus(h Handle) bool
	Geometry(h Handle) (Rect, error)
}

// Input injects synthetic mouse and keyboard events.
// Key names are lower case: "ctrl", "shift", "alt", "enter", "delete", or a single character.
type Input interface {
	Click(x, y, clicks int) error
	Hotkey(keys ...string) error
	Press(key string) error
}

type Clipboard interface {
	SetText(text string) error
	Text() (string, error)
}

type Screen interface {
	Capture(ctx context.Context) (image.Image, error)
}

// Launcher starts the target application detached from the bridge.
type Launcher interface {
	Launch(executable string, args ...string) error
}

// Backend bundles everything the automation needs from the desktop session.
type Backend interface {
	WindowController
	Input
	Clipboard
	Screen
	Launcher
	Name() string
}

const (
	KeyCtrl   = "ctrl"
	KeyShift  = "shift"
	KeyAlt    = "alt"
	KeyEnter  = "enter"
	KeyDelete = "delete"
)

// ErrWindowNotFound means no visible window matched the target title.
var ErrWindowNotFound = errors.New("target window not found")
