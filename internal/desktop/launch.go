package desktop

import (
	"fmt"
	"os/exec"
)

// StartDetached starts executable without waiting for it; the child is reaped in the background.
func StartDetached(executable string, args ...string) error {
	cmd := exec.Command(executable, args...)
	cmd.SysProcAttr = detachedProcAttr()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", executable, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
