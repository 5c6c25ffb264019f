package antigravity

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"ghostsync/cli/internal/target"
)

const (
	targetID    = "antigravity"
	windowTitle = "Antigravity"
)

type Target struct{}

func New() Target {
	return Target{}
}

func (Target) ID() string {
	return targetID
}

func (Target) DefaultProfile() target.Profile {
	return target.CommonDefaults(targetID, defaultExecutable(runtime.GOOS), windowTitle)
}

// defaultExecutable is the per-user install location on Windows and the PATH entry elsewhere.
func defaultExecutable(goos string) string {
	if goos != "windows" {
		return targetID
	}
	base := os.Getenv("LOCALAPPDATA")
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, "AppData", "Local")
		}
	}
	return filepath.Join(base, "Programs", "Antigravity", "Antigravity.exe")
}

func (Target) IsAvailable(_ context.Context, p target.Profile) (bool, error) {
	if filepath.IsAbs(p.Executable) {
		if _, err := os.Stat(p.Executable); err != nil {
			return false, nil
		}
		return true, nil
	}
	if _, err := exec.LookPath(p.Executable); err != nil {
		return false, nil
	}
	return true, nil
}

func (Target) LaunchArgs(projectPath string) []string {
	return []string{projectPath}
}

func init() {
	target.TargetRegistry.MustRegister(New())
}
