// Package desktoptest provides an in-memory desktop.Backend for tests.
package desktoptest

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"slices"
	"strings"
	"sync"

	"ghostsync/cli/internal/desktop"
)

// Fake records every call as a short string such as "click 10,20 x1" or "hotkey ctrl+v".
type Fake struct {
	mu sync.Mutex

	Windows   map[desktop.Handle]string
	Invalid   map[desktop.Handle]bool
	Rects     map[desktop.Handle]desktop.Rect
	FocusFail bool
	// Fail makes the call whose recorded prefix matches return an error.
	Fail map[string]error

	Clip   string
	Frames []image.Image

	Launched [][]string
	// OnLaunch runs after Launch records the call, e.g. to make a window appear.
	OnLaunch func(f *Fake, executable string, args []string)

	calls   []string
	frameAt int
}

var _ desktop.Backend = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Windows: map[desktop.Handle]string{},
		Invalid: map[desktop.Handle]bool{},
		Rects:   map[desktop.Handle]desktop.Rect{},
		Fail:    map[string]error{},
	}
}

// AddWindow registers a visible window with the given title and bounds.
func (f *Fake) AddWindow(h desktop.Handle, title string, r desktop.Rect) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Windows[h] = title
	f.Rects[h] = r
}

func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) record(call string) error {
	f.calls = append(f.calls, call)
	for prefix, err := range f.Fail {
		if strings.HasPrefix(call, prefix) {
			return err
		}
	}
	return nil
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) FindWindows(title string) ([]desktop.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("find " + title); err != nil {
		return nil, err
	}
	out := []desktop.Handle{}
	for h, t := range f.Windows {
		if strings.Contains(t, title) && !f.Invalid[h] {
			out = append(out, h)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (f *Fake) IsValid(h desktop.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.Windows[h]
	return ok && !f.Invalid[h]
}

func (f *Fake) Focus(h desktop.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.record(fmt.Sprintf("focus %d", h))
	_, ok := f.Windows[h]
	return ok && !f.Invalid[h] && !f.FocusFail
}

func (f *Fake) Geometry(h desktop.Handle) (desktop.Rect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.Rects[h]
	if !ok {
		return desktop.Rect{}, errors.New("no such window")
	}
	return r, nil
}

func (f *Fake) Click(x, y, clicks int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record(fmt.Sprintf("click %d,%d x%d", x, y, clicks))
}

func (f *Fake) Hotkey(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("hotkey " + strings.Join(keys, "+"))
}

func (f *Fake) Press(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("press " + key)
}

func (f *Fake) SetText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("clipboard set"); err != nil {
		return err
	}
	f.Clip = text
	return nil
}

func (f *Fake) Text() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("clipboard get"); err != nil {
		return "", err
	}
	return f.Clip, nil
}

// Capture returns Frames in order and then repeats the last one. With no
// frames it returns a small blank image.
func (f *Fake) Capture(ctx context.Context) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.record("capture"); err != nil {
		return nil, err
	}
	if len(f.Frames) == 0 {
		return Blank(64, 48, color.RGBA{A: 255}), nil
	}
	i := f.frameAt
	if i >= len(f.Frames) {
		i = len(f.Frames) - 1
	} else {
		f.frameAt++
	}
	return f.Frames[i], nil
}

func (f *Fake) Launch(executable string, args ...string) error {
	f.mu.Lock()
	if err := f.record("launch " + executable + " " + strings.Join(args, " ")); err != nil {
		f.mu.Unlock()
		return err
	}
	f.Launched = append(f.Launched, append([]string{executable}, args...))
	hook := f.OnLaunch
	f.mu.Unlock()
	if hook != nil {
		hook(f, executable, args)
	}
	return nil
}

// Blank returns a solid w×h image.
func Blank(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}
