package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type Options struct {
	Level     string
	Writer    io.Writer
	Component string
	// FilePath, when set, receives a copy of every record next to Writer.
	FilePath string
}

func NewLogger(opts Options) *slog.Logger {
	lg, _, _ := newLogger(opts)
	return lg
}

// NewFileLogger is NewLogger plus the opened log file, which the caller closes on shutdown.
func NewFileLogger(opts Options) (*slog.Logger, io.Closer, error) {
	return newLogger(opts)
}

func newLogger(opts Options) (*slog.Logger, io.Closer, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	var closer io.Closer = nopCloser{}
	var fileErr error
	if path := strings.TrimSpace(opts.FilePath); path != "" {
		f, err := openLogFile(path)
		if err != nil {
			fileErr = err
		} else {
			writer = io.MultiWriter(writer, f)
			closer = f
		}
	}
	h := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: parseLevel(opts.Level)})
	lg := slog.New(NewRedactingHandler(h))
	if strings.TrimSpace(opts.Component) != "" {
		lg = lg.With("component", strings.TrimSpace(opts.Component))
	}
	return lg, closer, fileErr
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
