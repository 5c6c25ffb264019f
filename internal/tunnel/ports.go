package tunnel

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	gnet "github.com/shirou/gopsutil/v4/net"
)

// DevServerPorts are probed in order by DetectDevServer.
var DevServerPorts = []int{3000, 3001, 3002, 5173, 5174, 8000, 8080}

const (
	portProbeTimeout = 500 * time.Millisecond
	portPollInterval = time.Second
)

// ListenerSource reports the local TCP ports currently in LISTEN state.
type ListenerSource func(ctx context.Context) ([]int, error)

// SystemListeners reads the OS socket table.
func SystemListeners(ctx context.Context) ([]int, error) {
	conns, err := gnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return nil, err
	}
	ports := make([]int, 0, len(conns))
	for _, c := range conns {
		if c.Status != "LISTEN" {
			continue
		}
		ports = append(ports, int(c.Laddr.Port))
	}
	return ports, nil
}

func IsPortOpen(port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("localhost", strconv.Itoa(port)), portProbeTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (m *Manager) IsPortOpen(port int) bool {
	return m.probe(port)
}

// WaitPortOpen polls until port accepts connections or timeout elapses.
func (m *Manager) WaitPortOpen(ctx context.Context, port int, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		if m.probe(port) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: %d after %s", ErrPortNeverOpen, port, timeout)
		case <-ticker.C:
		}
	}
}

// DetectDevServer returns the first well-known dev server port with a listener.
func (m *Manager) DetectDevServer(ctx context.Context) (int, bool) {
	ports, err := m.listeners(ctx)
	if err != nil {
		m.logger.Warn("listing sockets failed", "err", err)
		return 0, false
	}
	return firstListening(DevServerPorts, ports)
}

func firstListening(candidates, listening []int) (int, bool) {
	open := make(map[int]struct{}, len(listening))
	for _, p := range listening {
		open[p] = struct{}{}
	}
	for _, p := range candidates {
		if _, ok := open[p]; ok {
			return p, true
		}
	}
	return 0, false
}
