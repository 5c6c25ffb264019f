//go:build !windows

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"ghostsync/cli/internal/desktop"
	"ghostsync/cli/internal/desktop/xdo"
)

func newBackend(logger *slog.Logger) (desktop.Backend, error) {
	if os.Getenv("DISPLAY") == "" {
		return nil, fmt.Errorf("no X11 display: DISPLAY is not set")
	}
	if missing := xdo.MissingTools(exec.LookPath); len(missing) > 0 {
		logger.Warn("desktop helpers missing; related steps will fail", "missing", strings.Join(missing, ","))
	}
	return xdo.New(&xdo.RealExec{}, logger), nil
}
