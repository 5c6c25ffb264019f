//go:build windows

package main

import (
	"log/slog"

	"ghostsync/cli/internal/desktop"
	"ghostsync/cli/internal/desktop/win32"
)

func newBackend(logger *slog.Logger) (desktop.Backend, error) {
	return win32.New(logger), nil
}
