package logging

import (
	"context"
	"log/slog"
	"strings"
)

// redactedValue replaces secret material in log output.
const redactedValue = "[REDACTED]"

//nolint:gochecknoglobals
var redactedKeys = map[string]struct{}{
	"token":         {},
	"access_token":  {},
	"password":      {},
	"authorization": {},
	"secret":        {},
}

// RedactingHandler wraps another slog.Handler and masks credential material
// so bearer tokens and passwords never reach the log output.
type RedactingHandler struct {
	h slog.Handler
}

var _ slog.Handler = (*RedactingHandler)(nil)

// NewRedactingHandler creates a new RedactingHandler wrapping the given handler.
func NewRedactingHandler(h slog.Handler) *RedactingHandler {
	return &RedactingHandler{h: h}
}

// Handle implements slog.Handler by masking secret attributes before
// delegating to the wrapped handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	r.Attrs(func(attr slog.Attr) bool {
		clean.AddAttrs(redactAttr(attr))

		return true
	})

	//nolint:wrapcheck
	return h.h.Handle(ctx, clean)
}

// WithAttrs implements slog.Handler.WithAttrs, masking secret attributes.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		redacted[i] = redactAttr(attr)
	}

	return NewRedactingHandler(h.h.WithAttrs(redacted))
}

// WithGroup implements slog.Handler.WithGroup.
func (h *RedactingHandler) WithGroup(name string) Handler {
	return NewRedactingHandler(h.h.WithGroup(name))
}

// Enabled implements slog.Handler.Enabled.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup {
		members := attr.Value.Group()
		redacted := make([]slog.Attr, len(members))

		for i, member := range members {
			redacted[i] = redactAttr(member)
		}

		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(redacted...)}
	}

	if _, ok := redactedKeys[strings.ToLower(attr.Key)]; ok {
		return slog.String(attr.Key, redactedValue)
	}

	if attr.Value.Kind() == slog.KindString {
		if value := attr.Value.String(); strings.HasPrefix(value, "Bearer ") {
			return slog.String(attr.Key, "Bearer "+redactedValue)
		}
	}

	return attr
}
