//go:build !windows

package desktop

import "syscall"

// The target application gets its own process group so a Ctrl-C on the bridge does not close it.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
