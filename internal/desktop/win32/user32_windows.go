//go:build windows

package win32

import (
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"ghostsync/cli/internal/desktop"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	gdi32    = windows.NewLazySystemDLL("gdi32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procEnumWindows         = user32.NewProc("EnumWindows")
	procGetWindowTextW      = user32.NewProc("GetWindowTextW")
	procGetWindowTextLength = user32.NewProc("GetWindowTextLengthW")
	procIsWindowVisible     = user32.NewProc("IsWindowVisible")
	procIsWindow            = user32.NewProc("IsWindow")
	procIsIconic            = user32.NewProc("IsIconic")
	procShowWindow          = user32.NewProc("ShowWindow")
	procSetForegroundWindow = user32.NewProc("SetForegroundWindow")
	procGetWindowRect       = user32.NewProc("GetWindowRect")
	procSetCursorPos        = user32.NewProc("SetCursorPos")
	procMouseEvent          = user32.NewProc("mouse_event")
	procKeybdEvent          = user32.NewProc("keybd_event")
	procGetSystemMetrics    = user32.NewProc("GetSystemMetrics")
	procGetDC               = user32.NewProc("GetDC")
	procReleaseDC           = user32.NewProc("ReleaseDC")
	procOpenClipboard       = user32.NewProc("OpenClipboard")
	procCloseClipboard      = user32.NewProc("CloseClipboard")
	procEmptyClipboard      = user32.NewProc("EmptyClipboard")
	procSetClipboardData    = user32.NewProc("SetClipboardData")
	procGetClipboardData    = user32.NewProc("GetClipboardData")
)

const (
	swRestore = 9

	mouseLeftDown = 0x0002
	mouseLeftUp   = 0x0004
	keyEventKeyUp = 0x0002
)

type rect struct {
	Left, Top, Right, Bottom int32
}

// EnumWindows callbacks cannot be freed, so one callback is shared and guarded.
var (
	enumMu       sync.Mutex
	enumMatches  []desktop.Handle
	enumNeedle   string
	enumCallback = syscall.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		if visible, _, _ := procIsWindowVisible.Call(hwnd); visible == 0 {
			return 1
		}
		if titleMatches(windowText(hwnd), enumNeedle) {
			enumMatches = append(enumMatches, desktop.Handle(hwnd))
		}
		return 1
	})
)

func enumerateWindows(needle string) []desktop.Handle {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumMatches = []desktop.Handle{}
	enumNeedle = needle
	procEnumWindows.Call(enumCallback, 0)
	out := enumMatches
	enumMatches = nil
	return out
}

func windowText(hwnd uintptr) string {
	n, _, _ := procGetWindowTextLength.Call(hwnd)
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

func isWindow(h desktop.Handle) bool {
	ok, _, _ := procIsWindow.Call(uintptr(h))
	return ok != 0
}

func restoreWindow(h desktop.Handle) {
	hwnd := uintptr(h)
	if iconic, _, _ := procIsIconic.Call(hwnd); iconic != 0 {
		procShowWindow.Call(hwnd, swRestore)
	}
}

// setForeground reports whether Windows granted the foreground. Background
// processes are often refused by the foreground-lock rules.
func setForeground(h desktop.Handle) bool {
	ok, _, _ := procSetForegroundWindow.Call(uintptr(h))
	return ok != 0
}

func windowRect(h desktop.Handle) (desktop.Rect, error) {
	var r rect
	ok, _, err := procGetWindowRect.Call(uintptr(h), uintptr(unsafe.Pointer(&r)))
	if ok == 0 {
		return desktop.Rect{}, err
	}
	return desktop.Rect{
		Left:   int(r.Left),
		Top:    int(r.Top),
		Width:  int(r.Right - r.Left),
		Height: int(r.Bottom - r.Top),
	}, nil
}

func setCursor(x, y int) error {
	ok, _, err := procSetCursorPos.Call(uintptr(int32(x)), uintptr(int32(y)))
	if ok == 0 {
		return err
	}
	return nil
}

func leftClick() {
	procMouseEvent.Call(mouseLeftDown, 0, 0, 0, 0)
	procMouseEvent.Call(mouseLeftUp, 0, 0, 0, 0)
}

func keyDown(vk byte) {
	procKeybdEvent.Call(uintptr(vk), 0, 0, 0)
}

func keyUp(vk byte) {
	procKeybdEvent.Call(uintptr(vk), 0, keyEventKeyUp, 0)
}
