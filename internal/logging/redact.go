package logging

import (
	"context"
	"log/slog"
	"regexp"
)

type redactRule struct {
	pattern     *regexp.Regexp
	replacement string
}

var redactRules = []redactRule{
	{regexp.MustCompile(`(?i)token=[\w-]+`), "token=***"},
	{regexp.MustCompile(`(?i)password["']?\s*[:=]\s*["']?[\w]+`), "password=***"},
	{regexp.MustCompile(`(?i)api[_-]?key["']?\s*[:=]\s*["']?[\w]+`), "api_key=***"},
	{regexp.MustCompile(`(?i)bearer\s+[\w\-\.=]+`), "Bearer ***"},
	// Telegram bot tokens, also inside api.telegram.org/bot<token>/ URLs.
	{regexp.MustCompile(`\d{6,}:[A-Za-z0-9_-]{30,}`), "***"},
}

// Redact masks credentials in s before it reaches any log sink.
func Redact(s string) string {
	for _, rule := range redactRules {
		s = rule.pattern.ReplaceAllString(s, rule.replacement)
	}
	return s
}

// RedactingHandler rewrites the message and string-like attributes of each record through Redact.
type RedactingHandler struct {
	next slog.Handler
}

func NewRedactingHandler(next slog.Handler) *RedactingHandler {
	return &RedactingHandler{next: next}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, Redact(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		clean = append(clean, redactAttr(a))
	}
	return &RedactingHandler{next: h.next.WithAttrs(clean)}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, Redact(v.String()))
	case slog.KindGroup:
		group := v.Group()
		clean := make([]any, 0, len(group))
		for _, ga := range group {
			clean = append(clean, redactAttr(ga))
		}
		return slog.Group(a.Key, clean...)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok && err != nil {
			return slog.String(a.Key, Redact(err.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}
