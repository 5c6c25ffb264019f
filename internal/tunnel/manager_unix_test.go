//go:build !windows

package tunnel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

func readPID(t *testing.T, path string) int {
	t.Helper()
	var raw []byte
	waitFor(t, func() bool {
		b, err := os.ReadFile(path)
		if err != nil || strings.TrimSpace(string(b)) == "" {
			return false
		}
		raw = b
		return true
	})
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		t.Fatalf("parse pid %q: %v", raw, err)
	}
	return pid
}

func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func TestManager_Create_TimesOutWithoutURL(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "pid")
	bin := writeFakeCloudflared(t, `echo $$ > "`+pidFile+`"
echo "INF starting"
exec sleep 30`)
	m := NewManager(Options{BinaryPath: bin, URLTimeout: 300 * time.Millisecond, Logger: quietLogger()})

	_, err := m.Create(context.Background(), 8080)
	if !errors.Is(err, ErrTunnelTimeout) {
		t.Fatalf("expected ErrTunnelTimeout, got %v", err)
	}
	if pid := readPID(t, pidFile); processAlive(pid) {
		t.Fatalf("cloudflared %d still running after timeout", pid)
	}
	m.mu.Lock()
	n := len(m.tunnels)
	m.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected no tracked processes, got %d", n)
	}
}

func TestManager_Create_TimeoutKillsProcessIgnoringTerminate(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "pid")
	bin := writeFakeCloudflared(t, `trap '' TERM
echo $$ > "`+pidFile+`"
while :; do sleep 0.1; done`)
	m := NewManager(Options{BinaryPath: bin, URLTimeout: 300 * time.Millisecond, Logger: quietLogger()})
	m.killWait = 200 * time.Millisecond

	_, err := m.Create(context.Background(), 8080)
	if !errors.Is(err, ErrTunnelTimeout) {
		t.Fatalf("expected ErrTunnelTimeout, got %v", err)
	}
	if pid := readPID(t, pidFile); processAlive(pid) {
		t.Fatalf("cloudflared %d survived the timeout", pid)
	}
}

func TestManager_KillAll_KillsProcessIgnoringTerminate(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "pid")
	bin := writeFakeCloudflared(t, `trap '' TERM
echo $$ > "`+pidFile+`"
echo "https://stubborn.trycloudflare.com"
while :; do sleep 0.1; done`)
	m := NewManager(Options{BinaryPath: bin, URLTimeout: 5 * time.Second, Logger: quietLogger()})
	m.killWait = 200 * time.Millisecond

	if _, err := m.Create(context.Background(), 3000); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	pid := readPID(t, pidFile)
	m.KillAll()
	if processAlive(pid) {
		t.Fatalf("cloudflared %d survived KillAll", pid)
	}
	if len(m.List()) != 0 {
		t.Fatalf("expected no records, got %+v", m.List())
	}
}
