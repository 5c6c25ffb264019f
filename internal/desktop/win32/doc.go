// Package win32 implements desktop.Backend on top of user32, gdi32 and kernel32.
package win32
