package automation

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ghostsync/cli/internal/desktop"
	"ghostsync/cli/internal/screen"
	"ghostsync/cli/internal/target"
)

var ErrWindowNotFound = desktop.ErrWindowNotFound

const (
	DefaultReply = "✅ Task processed."

	defaultPortWait    = 10 * time.Second
	clipboardSettle    = 100 * time.Millisecond
	copyHotkeyKey      = "c"
	selectAllHotkeyKey = "a"
)

var replyPortPattern = regexp.MustCompile(`:(\d{4,5})`)

type Deliverer interface {
	Deliver(ctx context.Context, h desktop.Handle, text string) (desktop.Handle, error)
}

type Waiter interface {
	Wait(ctx context.Context, opts screen.WaitOptions) (screen.Outcome, error)
}

// Tunnels is the subset of the tunnel manager used after a prompt finishes.
type Tunnels interface {
	Create(ctx context.Context, port int) (string, error)
	DetectDevServer(ctx context.Context) (int, bool)
	WaitPortOpen(ctx context.Context, port int, timeout time.Duration) error
}

// EventFunc receives progress events for live observers.
type EventFunc func(eventType string, payload map[string]any)

// Result is what a prompt produced.
type Result struct {
	ReplyText       string
	LocalURL        string
	PublicURL       string
	ScreenshotPath  string
	PromptsResolved int
	Settled         bool
}

// Status is a snapshot for observers.
type Status struct {
	Window      string `json:"window"`
	ProjectPath string `json:"project_path"`
	Busy        bool   `json:"busy"`
	Target      string `json:"target"`
	Backend     string `json:"backend"`
}

type Deps struct {
	Backend   desktop.Backend
	Target    target.Target
	Profile   target.Profile
	Sequencer Deliverer
	Monitor   Waiter
	Tunnels   Tunnels
	Shots     *screen.Shots
	Logger    *slog.Logger
	OnEvent   EventFunc
}

// Orchestrator runs one automation at a time against the target window.
type Orchestrator struct {
	// mu is held for the whole of OpenProject and RunPrompt.
	mu   sync.Mutex
	busy atomic.Bool

	backend   desktop.Backend
	target    target.Target
	profile   target.Profile
	sequencer Deliverer
	monitor   Waiter
	tunnels   Tunnels
	shots     *screen.Shots
	logger    *slog.Logger
	onEvent   EventFunc

	portWait time.Duration
	sleep    func(ctx context.Context, d time.Duration) error

	stateMu     sync.RWMutex
	window      desktop.Handle
	projectPath string
}

func New(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		backend:   deps.Backend,
		target:    deps.Target,
		profile:   deps.Profile,
		sequencer: deps.Sequencer,
		monitor:   deps.Monitor,
		tunnels:   deps.Tunnels,
		shots:     deps.Shots,
		logger:    logger.With("module", "automation"),
		onEvent:   deps.OnEvent,
		portWait:  defaultPortWait,
		sleep:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (o *Orchestrator) lock() func() {
	o.mu.Lock()
	o.busy.Store(true)
	return func() {
		o.busy.Store(false)
		o.mu.Unlock()
	}
}

func (o *Orchestrator) emit(eventType string, payload map[string]any) {
	if o.onEvent != nil {
		o.onEvent(eventType, payload)
	}
}

func (o *Orchestrator) Status() Status {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	st := Status{
		ProjectPath: o.projectPath,
		Busy:        o.busy.Load(),
		Backend:     o.backend.Name(),
	}
	if o.window != 0 {
		st.Window = o.window.String()
	}
	if o.target != nil {
		st.Target = o.target.ID()
	}
	return st
}

func (o *Orchestrator) setWindow(h desktop.Handle) {
	o.stateMu.Lock()
	o.window = h
	o.stateMu.Unlock()
}

func (o *Orchestrator) currentWindow() desktop.Handle {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.window
}

// OpenProject launches the target app on path and returns a screenshot of the result.
func (o *Orchestrator) OpenProject(ctx context.Context, path string) (string, error) {
	unlock := o.lock()
	defer unlock()

	path = strings.TrimSpace(path)
	args := []string{path}
	if o.target != nil {
		args = o.target.LaunchArgs(path)
	}
	o.logger.Info("opening project", "path", path, "executable", o.profile.Executable)
	o.emit("project.opening", map[string]any{"path": path})
	if err := o.backend.Launch(o.profile.Executable, args...); err != nil {
		return "", fmt.Errorf("launch %s: %w", o.profile.ID, err)
	}
	if err := o.sleep(ctx, o.profile.LaunchSettle); err != nil {
		return "", err
	}

	handles, err := o.backend.FindWindows(o.profile.WindowTitle)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWindowNotFound, err)
	}
	if len(handles) == 0 {
		o.logger.Warn("target window not found after launch", "title", o.profile.WindowTitle)
		return "", ErrWindowNotFound
	}
	o.stateMu.Lock()
	o.window = handles[0]
	o.projectPath = path
	o.stateMu.Unlock()

	shot := o.screenshot(ctx)
	o.emit("project.opened", map[string]any{"path": path, "window": handles[0].String()})
	return shot, nil
}

// RunPrompt delivers text, waits for the app to settle, collects the reply
// and publishes any dev server it mentions.
func (o *Orchestrator) RunPrompt(ctx context.Context, text string, decide screen.DecideFunc) (Result, error) {
	unlock := o.lock()
	defer unlock()

	o.emit("prompt.delivering", map[string]any{"chars": len([]rune(text))})
	h, err := o.sequencer.Deliver(ctx, o.currentWindow(), text)
	if err != nil {
		o.logger.Error("prompt delivery failed", "err", err)
		return Result{}, err
	}
	o.setWindow(h)

	o.emit("screen.waiting", nil)
	outcome, err := o.monitor.Wait(ctx, screen.WaitOptions{
		Interval:       o.profile.MonitorInterval,
		StableFor:      o.profile.StableFor,
		PromptInterval: o.profile.PromptInterval,
		Deadline:       o.profile.Deadline,
		Window:         h,
		Decide:         decide,
	})
	if err != nil {
		return Result{}, err
	}
	res := Result{
		PromptsResolved: outcome.PromptsResolved,
		Settled:         outcome.Status == screen.StatusStable,
	}

	res.ReplyText = o.copyReply(ctx)

	port, ok := PortFromReply(res.ReplyText)
	if !ok && o.tunnels != nil {
		port, ok = o.tunnels.DetectDevServer(ctx)
	}
	if ok {
		res.LocalURL = fmt.Sprintf("http://localhost:%d", port)
		res.PublicURL = o.publish(ctx, port)
	}

	res.ScreenshotPath = o.screenshot(ctx)
	o.emit("prompt.completed", map[string]any{
		"local_url":        res.LocalURL,
		"public_url":       res.PublicURL,
		"prompts_resolved": res.PromptsResolved,
		"settled":          res.Settled,
	})
	return res, nil
}

// copyReply selects the focused pane and copies it. Any failure yields DefaultReply.
func (o *Orchestrator) copyReply(ctx context.Context) string {
	if err := o.backend.Hotkey(desktop.KeyCtrl, selectAllHotkeyKey); err != nil {
		o.logger.Warn("select all failed", "err", err)
		return DefaultReply
	}
	if err := o.backend.Hotkey(desktop.KeyCtrl, copyHotkeyKey); err != nil {
		o.logger.Warn("copy failed", "err", err)
		return DefaultReply
	}
	if err := o.sleep(ctx, clipboardSettle); err != nil {
		return DefaultReply
	}
	text, err := o.backend.Text()
	if err != nil || strings.TrimSpace(text) == "" {
		return DefaultReply
	}
	return text
}

// publish waits for port and opens a tunnel. Failures only cost the public URL.
func (o *Orchestrator) publish(ctx context.Context, port int) string {
	if o.tunnels == nil {
		return ""
	}
	if err := o.tunnels.WaitPortOpen(ctx, port, o.portWait); err != nil {
		o.logger.Warn("dev server port not open", "port", port, "err", err)
		return ""
	}
	url, err := o.tunnels.Create(ctx, port)
	if err != nil {
		o.logger.Warn("tunnel failed", "port", port, "err", err)
		return ""
	}
	return url
}

func (o *Orchestrator) screenshot(ctx context.Context) string {
	if o.shots == nil {
		return ""
	}
	frame, err := o.backend.Capture(ctx)
	if err != nil {
		o.logger.Warn("screenshot failed", "err", err)
		return ""
	}
	path, err := o.shots.Save(frame)
	if err != nil {
		o.logger.Warn("screenshot save failed", "err", err)
		return ""
	}
	return path
}

// PortFromReply returns the first ":NNNN" or ":NNNNN" port mentioned in text.
func PortFromReply(text string) (int, bool) {
	m := replyPortPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	port, err := strconv.Atoi(m[1])
	if err != nil || port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}
