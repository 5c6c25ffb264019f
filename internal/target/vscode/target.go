package vscode

import (
	"context"
	"os/exec"

	"ghostsync/cli/internal/target"
)

const targetID = "code"

// Target drives Visual Studio Code, which shares Antigravity's inline chat layout.
type Target struct{}

func New() Target {
	return Target{}
}

func (Target) ID() string {
	return targetID
}

func (Target) DefaultProfile() target.Profile {
	return target.CommonDefaults(targetID, "code", "Visual Studio Code")
}

func (Target) IsAvailable(_ context.Context, p target.Profile) (bool, error) {
	if _, err := exec.LookPath(p.Executable); err != nil {
		return false, nil
	}
	return true, nil
}

// LaunchArgs reuses an existing window when the folder is already open.
func (Target) LaunchArgs(projectPath string) []string {
	return []string{"--reuse-window", projectPath}
}

func init() {
	target.TargetRegistry.MustRegister(New())
}
