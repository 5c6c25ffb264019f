package tunnel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"regexp"
	"sort"
	"sync"
	"time"
)

var publicURLPattern = regexp.MustCompile(`https://[a-zA-Z0-9-]+\.trycloudflare\.com`)

const (
	defaultURLTimeout = 30 * time.Second
	killWaitTimeout   = 3 * time.Second
	reaperInterval    = time.Minute
)

type Options struct {
	// BinaryPath pins the cloudflared executable and skips discovery.
	BinaryPath string
	// CacheDir receives a downloaded cloudflared when none is on PATH.
	CacheDir    string
	DownloadURL string
	URLTimeout  time.Duration
	// MaxAge bounds tunnel lifetime for ExpireStale. Zero disables expiry.
	MaxAge     time.Duration
	Logger     *slog.Logger
	HTTPClient *http.Client
	Listeners  ListenerSource
}

// Record describes one published tunnel.
type Record struct {
	Port      int       `json:"port"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	PID       int       `json:"pid"`
}

type process struct {
	record Record
	cmd    *exec.Cmd
	done   chan struct{}
}

type Manager struct {
	opts       Options
	logger     *slog.Logger
	httpClient *http.Client
	listeners  ListenerSource
	lookPath   func(string) (string, error)
	probe      func(int) bool
	now        func() time.Time

	pollInterval time.Duration
	killWait     time.Duration

	// lifecycleMu serialises kill-then-create so at most one tunnel exists.
	lifecycleMu sync.Mutex

	mu      sync.Mutex
	tunnels map[int]*process

	binMu       sync.Mutex
	binResolved bool
	binPath     string
	binErr      error
}

func NewManager(opts Options) *Manager {
	if opts.URLTimeout <= 0 {
		opts.URLTimeout = defaultURLTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	listeners := opts.Listeners
	if listeners == nil {
		listeners = SystemListeners
	}
	return &Manager{
		opts:         opts,
		logger:       logger.With("module", "tunnel"),
		httpClient:   client,
		listeners:    listeners,
		lookPath:     exec.LookPath,
		probe:        IsPortOpen,
		now:          time.Now,
		pollInterval: portPollInterval,
		killWait:     killWaitTimeout,
		tunnels:      map[int]*process{},
	}
}

// Create kills every running tunnel, then starts cloudflared for port and
// waits for it to publish its public URL.
func (m *Manager) Create(ctx context.Context, port int) (string, error) {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.killAll()

	bin, err := m.resolveBinary(ctx)
	if err != nil {
		return "", err
	}

	cmd := exec.Command(bin, "tunnel", "--url", fmt.Sprintf("http://localhost:%d", port))
	cmd.SysProcAttr = sysProcAttr()
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return "", fmt.Errorf("start cloudflared: %w", err)
	}

	p := &process{
		record: Record{Port: port, CreatedAt: m.now(), PID: cmd.Process.Pid},
		cmd:    cmd,
		done:   make(chan struct{}),
	}
	m.mu.Lock()
	m.tunnels[port] = p
	m.mu.Unlock()

	found := make(chan string, 1)
	go scanForURL(pr, found)
	go func() {
		err := cmd.Wait()
		_ = pw.Close()
		close(p.done)
		m.forget(port, p)
		m.logger.Info("cloudflared exited", "port", port, "pid", p.record.PID, "err", err)
	}()

	m.logger.Info("creating tunnel", "port", port, "pid", p.record.PID)
	timer := time.NewTimer(m.opts.URLTimeout)
	defer timer.Stop()

	select {
	case url := <-found:
		return m.publish(port, p, url)
	case <-p.done:
		select {
		case url := <-found:
			return m.publish(port, p, url)
		default:
		}
		return "", fmt.Errorf("%w: cloudflared exited before publishing a url", ErrTunnelTimeout)
	case <-timer.C:
		m.stop(port, p)
		return "", fmt.Errorf("%w: port %d after %s", ErrTunnelTimeout, port, m.opts.URLTimeout)
	case <-ctx.Done():
		m.stop(port, p)
		return "", ctx.Err()
	}
}

// scanForURL reports the first public URL and keeps draining so the child never blocks on a full pipe.
func scanForURL(r *io.PipeReader, found chan<- string) {
	defer r.Close()
	sent := false
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if sent {
			continue
		}
		if url := publicURLPattern.FindString(scanner.Text()); url != "" {
			found <- url
			sent = true
		}
	}
	_, _ = io.Copy(io.Discard, r)
}

func (m *Manager) publish(port int, p *process, url string) (string, error) {
	m.mu.Lock()
	p.record.URL = url
	m.mu.Unlock()
	m.logger.Info("tunnel ready", "port", port, "url", url)
	return url, nil
}

func (m *Manager) forget(port int, p *process) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tunnels[port] == p {
		delete(m.tunnels, port)
	}
}

// stop terminates p and escalates to a kill when it outlives killWait.
func (m *Manager) stop(port int, p *process) {
	terminate(p.cmd)
	select {
	case <-p.done:
		m.forget(port, p)
		return
	case <-time.After(m.killWait):
	}
	m.logger.Warn("cloudflared ignored terminate; killing", "port", port, "pid", p.record.PID)
	forceKill(p.cmd)
	select {
	case <-p.done:
	case <-time.After(m.killWait):
		m.logger.Error("cloudflared still running after kill", "port", port, "pid", p.record.PID)
	}
	m.forget(port, p)
}

// KillAll terminates every tunnel.
func (m *Manager) KillAll() {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	m.killAll()
}

func (m *Manager) killAll() {
	m.mu.Lock()
	procs := make(map[int]*process, len(m.tunnels))
	for port, p := range m.tunnels {
		procs[port] = p
	}
	m.mu.Unlock()
	for port, p := range procs {
		m.logger.Info("killing tunnel", "port", port, "pid", p.record.PID)
		m.stop(port, p)
	}
}

// ExpireStale kills tunnels older than MaxAge and returns how many were killed.
func (m *Manager) ExpireStale(now time.Time) int {
	if m.opts.MaxAge <= 0 {
		return 0
	}
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.Lock()
	stale := map[int]*process{}
	for port, p := range m.tunnels {
		if now.Sub(p.record.CreatedAt) >= m.opts.MaxAge {
			stale[port] = p
		}
	}
	m.mu.Unlock()
	for port, p := range stale {
		m.logger.Info("tunnel expired", "port", port, "age", now.Sub(p.record.CreatedAt).String())
		m.stop(port, p)
	}
	return len(stale)
}

// RunReaper expires stale tunnels every minute until ctx is done.
func (m *Manager) RunReaper(ctx context.Context) error {
	ticker := time.NewTicker(reaperInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.ExpireStale(m.now())
		}
	}
}

// List returns the tunnels that have published a URL, ordered by port.
func (m *Manager) List() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.tunnels))
	for _, p := range m.tunnels {
		if p.record.URL == "" {
			continue
		}
		out = append(out, p.record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}
