package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"ghostsync/cli/internal/automation"
	"ghostsync/cli/internal/historydb"
	"ghostsync/cli/internal/input"
	"ghostsync/cli/internal/logging"
	"ghostsync/cli/internal/screen"
	"ghostsync/cli/internal/session"
)

var ErrAdmissionDenied = errors.New("rate limited")

const (
	OpeningStatus      = "📂 Opening project..."
	WorkingStatus      = "🤖 Working..."
	ReadyReply         = "✅ Ready for prompts."
	RetryPathReply     = "Send path again."
	RateLimitedReply   = "⏱️ Rate limited."
	FailureReply       = "❌ Something went wrong. Check the bridge log."
	WindowMissingReply = "❌ Error: Window not found"

	maxReplyRunes  = 1000
	maxSuggestions = 3
)

// Reply is what goes back to the operator. Ignored replies are not sent.
type Reply struct {
	Text      string
	ImagePath string
	Ignored   bool
}

type Automation interface {
	OpenProject(ctx context.Context, path string) (string, error)
	RunPrompt(ctx context.Context, text string, decide screen.DecideFunc) (automation.Result, error)
}

type Admitter interface {
	Admit(userID int64) bool
}

// History records runs. A nil History disables recording.
type History interface {
	BeginRun(userID int64, projectPath, prompt string) (string, error)
	FinishRun(runID string, res historydb.RunResult) error
	UpsertProject(path string) error
	RecordDecision(runID, decision, source string) error
}

// PathResolver validates a project folder before the app is launched on it.
type PathResolver interface {
	Resolve(input string) (string, error)
	Suggest(input string, limit int) []string
}

// StatusFunc shows a transient status line and returns a func that removes it.
type StatusFunc func(ctx context.Context, userID int64, text string) (remove func())

// DecideFunc answers a detected accept/deny prompt on behalf of userID.
type DecideFunc func(ctx context.Context, userID int64, shotPath string, p screen.Prompt) (screen.Decision, string)

type Options struct {
	AppName string
	Status  StatusFunc
	Decide  DecideFunc
	History History
	// Paths, when set, rejects folders that do not exist.
	Paths   PathResolver
	Logger  *slog.Logger
}

type Handler struct {
	sessions *session.Store
	limiter  Admitter
	auto     Automation
	appName  string
	status   StatusFunc
	decide   DecideFunc
	history  History
	paths    PathResolver
	logger   *slog.Logger
}

func NewHandler(sessions *session.Store, limiter Admitter, auto Automation, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appName := strings.TrimSpace(opts.AppName)
	if appName == "" {
		appName = "Antigravity"
	}
	return &Handler{
		sessions: sessions,
		limiter:  limiter,
		auto:     auto,
		appName:  appName,
		status:   opts.Status,
		decide:   opts.Decide,
		history:  opts.History,
		paths:    opts.Paths,
		logger:   logger.With("module", "bridge"),
	}
}

// AutoAccept always accepts; it mirrors the unattended default.
func AutoAccept(context.Context, int64, string, screen.Prompt) (screen.Decision, string) {
	return screen.Accept, "auto"
}

// Start resets userID's session and returns the greeting.
func (h *Handler) Start(_ context.Context, userID int64) string {
	h.sessions.Start(userID)
	h.logger.Info("session started", "user_id", userID)
	return fmt.Sprintf("👻 GhostSync Active\nSend the project folder path to open %s.", h.appName)
}

// Handle interprets text against userID's session. The returned error is for
// logging; the Reply always carries what the operator should see.
func (h *Handler) Handle(ctx context.Context, userID int64, text string) (reply Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("handler panic", "user_id", userID, "panic", logging.Redact(fmt.Sprint(r)), "stack", string(debug.Stack()))
			reply = Reply{Text: FailureReply}
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	if session.IsStartCommand(text) {
		return Reply{Text: h.Start(ctx, userID)}, nil
	}

	sess := h.sessions.Get(userID)
	switch sess.State {
	case session.StateAwaitingPath:
		return h.openProject(ctx, userID, text)
	case session.StateAwaitingConfirmation:
		if _, ok := h.sessions.Confirm(userID, text); ok {
			return Reply{Text: ReadyReply}, nil
		}
		return Reply{Text: RetryPathReply}, nil
	case session.StateReady:
		return h.runPrompt(ctx, userID, sess.ProjectPath, text)
	default:
		return Reply{Ignored: true}, nil
	}
}

func (h *Handler) openProject(ctx context.Context, userID int64, text string) (Reply, error) {
	path := strings.TrimSpace(text)
	if path == "" {
		return Reply{Text: RetryPathReply}, nil
	}
	if h.paths != nil {
		resolved, err := h.paths.Resolve(path)
		if err != nil {
			h.logger.Info("project path rejected", "user_id", userID, "path", path, "err", err)
			return Reply{Text: notFolderReply(path, h.paths.Suggest(path, maxSuggestions))}, nil
		}
		path = resolved
	}
	done := h.showStatus(ctx, userID, OpeningStatus)
	shot, err := h.auto.OpenProject(ctx, path)
	done()
	if err != nil {
		h.logger.Warn("open project failed", "user_id", userID, "path", path, "err", err)
		return Reply{Text: errorReply(err)}, err
	}
	h.sessions.ProjectOpened(userID, path)
	if h.history != nil {
		if err := h.history.UpsertProject(path); err != nil {
			h.logger.Warn("record project failed", "err", err)
		}
	}
	return Reply{Text: fmt.Sprintf("Opened: %s\nConfirm? (yes/no)", path), ImagePath: shot}, nil
}

func notFolderReply(path string, suggestions []string) string {
	var b strings.Builder
	b.WriteString("📁 Not a folder: ")
	b.WriteString(path)
	if len(suggestions) > 0 {
		b.WriteString("\nDid you mean:")
		for _, s := range suggestions {
			b.WriteString("\n• ")
			b.WriteString(s)
		}
	}
	b.WriteString("\n")
	b.WriteString(RetryPathReply)
	return b.String()
}

func (h *Handler) runPrompt(ctx context.Context, userID int64, projectPath, text string) (Reply, error) {
	if h.limiter != nil && !h.limiter.Admit(userID) {
		h.logger.Info("request rate limited", "user_id", userID)
		return Reply{Text: RateLimitedReply}, ErrAdmissionDenied
	}

	runID := ""
	if h.history != nil {
		id, err := h.history.BeginRun(userID, projectPath, text)
		if err != nil {
			h.logger.Warn("record run start failed", "err", err)
		}
		runID = id
	}

	done := h.showStatus(ctx, userID, WorkingStatus)
	res, err := h.auto.RunPrompt(ctx, text, h.decider(userID, runID))
	done()

	if h.history != nil && runID != "" {
		if ferr := h.history.FinishRun(runID, historydb.RunResult{
			Reply:           res.ReplyText,
			LocalURL:        res.LocalURL,
			PublicURL:       res.PublicURL,
			PromptsResolved: res.PromptsResolved,
			Err:             err,
		}); ferr != nil {
			h.logger.Warn("record run finish failed", "err", ferr)
		}
	}
	if err != nil {
		h.logger.Warn("prompt failed", "user_id", userID, "err", err)
		return Reply{Text: errorReply(err)}, err
	}
	h.logger.Info("prompt completed", "user_id", userID, "local_url", res.LocalURL, "public_url", res.PublicURL, "prompts", res.PromptsResolved)
	return Reply{Text: FormatResult(res), ImagePath: res.ScreenshotPath}, nil
}

func (h *Handler) decider(userID int64, runID string) screen.DecideFunc {
	decide := h.decide
	if decide == nil {
		decide = AutoAccept
	}
	return func(ctx context.Context, shotPath string, p screen.Prompt) screen.Decision {
		d, source := decide(ctx, userID, shotPath, p)
		h.logger.Info("prompt decision", "user_id", userID, "decision", d.String(), "source", source)
		if h.history != nil && runID != "" {
			if err := h.history.RecordDecision(runID, d.String(), source); err != nil {
				h.logger.Warn("record decision failed", "err", err)
			}
		}
		return d
	}
}

func (h *Handler) showStatus(ctx context.Context, userID int64, text string) func() {
	if h.status == nil {
		return func() {}
	}
	remove := h.status(ctx, userID, text)
	if remove == nil {
		return func() {}
	}
	return remove
}

// FormatResult renders a prompt result as the operator reply.
func FormatResult(res automation.Result) string {
	reply := truncateRunes(res.ReplyText, maxReplyRunes)
	if res.LocalURL != "" {
		reply += "\n\n🏠 Local: " + res.LocalURL
	}
	if res.PublicURL != "" {
		reply += "\n🌐 Public: " + res.PublicURL
	}
	return reply
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func errorReply(err error) string {
	switch {
	case errors.Is(err, automation.ErrWindowNotFound):
		return WindowMissingReply
	case errors.Is(err, input.ErrFocus):
		return "❌ Focus Error: " + logging.Redact(err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "❌ Cancelled."
	default:
		return "❌ Error: " + logging.Redact(err.Error())
	}
}
