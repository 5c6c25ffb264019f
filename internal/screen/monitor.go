package screen

import (
	"context"
	"image"
	"log/slog"
	"time"

	"ghostsync/cli/internal/desktop"
)

type Status string

const (
	StatusStable   Status = "stable"
	StatusDeadline Status = "deadline"
)

// Outcome summarises one Wait call.
type Outcome struct {
	Status          Status
	PromptsResolved int
	Elapsed         time.Duration
}

// DecideFunc chooses how to answer a detected prompt. shotPath is the saved
// frame and is removed once DecideFunc returns.
type DecideFunc func(ctx context.Context, shotPath string, p Prompt) Decision

type WaitOptions struct {
	Interval       time.Duration
	StableFor      time.Duration
	PromptInterval time.Duration
	Deadline       time.Duration
	// Window is refocused before a prompt button is clicked.
	Window desktop.Handle
	Decide DecideFunc
}

func DefaultWaitOptions() WaitOptions {
	return WaitOptions{
		Interval:       time.Second,
		StableFor:      3 * time.Second,
		PromptInterval: 4 * time.Second,
		Deadline:       180 * time.Second,
	}
}

type Monitor struct {
	screen   desktop.Screen
	windows  desktop.WindowController
	input    desktop.Input
	detector PromptDetector
	shots    *Shots
	logger   *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewMonitor(screen desktop.Screen, windows desktop.WindowController, input desktop.Input, detector PromptDetector, shots *Shots, logger *slog.Logger) *Monitor {
	if detector == nil {
		detector = ColorDetector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		screen:   screen,
		windows:  windows,
		input:    input,
		detector: detector,
		shots:    shots,
		logger:   logger.With("module", "screen"),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait blocks until the screen stops changing, answering accept/deny prompts
// along the way, or until the deadline passes.
func (m *Monitor) Wait(ctx context.Context, opts WaitOptions) (Outcome, error) {
	opts = withDefaults(opts)
	start := m.now()
	out := Outcome{Status: StatusDeadline}

	baseline, _ := m.capture(ctx)
	var (
		stableSince   time.Time
		stable        bool
		lastCheck     time.Time
		checkedPrompt bool
	)
	for {
		if m.now().Sub(start) >= opts.Deadline {
			out.Elapsed = m.now().Sub(start)
			m.logger.Warn("screen did not settle before deadline", "elapsed", out.Elapsed.String(), "prompts", out.PromptsResolved)
			return out, nil
		}
		if err := m.sleep(ctx, opts.Interval); err != nil {
			return out, err
		}
		frame, err := m.capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			continue
		}

		if !checkedPrompt || m.now().Sub(lastCheck) >= opts.PromptInterval {
			checkedPrompt = true
			lastCheck = m.now()
			if prompt, ok := m.detector.Detect(frame); ok {
				m.answer(ctx, opts, frame, prompt)
				out.PromptsResolved++
				stable = false
				continue
			}
		}

		if Identical(baseline, frame) {
			if !stable {
				stableSince = m.now()
				stable = true
			} else if m.now().Sub(stableSince) >= opts.StableFor {
				out.Status = StatusStable
				out.Elapsed = m.now().Sub(start)
				m.logger.Info("screen settled", "elapsed", out.Elapsed.String(), "prompts", out.PromptsResolved)
				return out, nil
			}
			continue
		}
		stable = false
		baseline = frame
	}
}

func withDefaults(opts WaitOptions) WaitOptions {
	def := DefaultWaitOptions()
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.StableFor <= 0 {
		opts.StableFor = def.StableFor
	}
	if opts.PromptInterval <= 0 {
		opts.PromptInterval = def.PromptInterval
	}
	if opts.Deadline <= 0 {
		opts.Deadline = def.Deadline
	}
	return opts
}

func (m *Monitor) capture(ctx context.Context) (image.Image, error) {
	frame, err := m.screen.Capture(ctx)
	if err != nil {
		m.logger.Warn("screen capture failed", "err", err)
		return nil, err
	}
	if m.shots != nil {
		if _, err := m.shots.SaveLatest(frame); err != nil {
			m.logger.Warn("write latest frame failed", "err", err)
		}
	}
	return frame, nil
}

func (m *Monitor) answer(ctx context.Context, opts WaitOptions, frame image.Image, prompt Prompt) {
	shotPath := ""
	if m.shots != nil {
		path, err := m.shots.Save(frame)
		if err != nil {
			m.logger.Warn("save prompt frame failed", "err", err)
		} else {
			shotPath = path
			defer func() { _ = m.shots.Remove(path) }()
		}
	}
	decision := Accept
	if opts.Decide != nil {
		decision = opts.Decide(ctx, shotPath, prompt)
	}
	if opts.Window != 0 && !m.windows.Focus(opts.Window) {
		m.logger.Warn("refocus before prompt click failed", "window", opts.Window.String())
	}
	target := prompt.Target(decision)
	m.logger.Info("answering prompt", "decision", decision.String(), "x", target.X, "y", target.Y)
	if err := m.input.Click(target.X, target.Y, 1); err != nil {
		m.logger.Warn("prompt click failed", "err", err)
	}
}
