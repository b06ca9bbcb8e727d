package log

import (
	"context"
	"log/slog"
)

// SecureHandler wraps an slog.Handler and masks sensitive attributes before
// they reach it. Keys such as cookie or authorization are always masked,
// string values are checked against known credential shapes, and URLs
// have their userinfo password and signed query parameters hidden.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler wraps handler. A nil handler falls back to slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle copies r with every attribute sanitized and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs sanitizes attrs before attaching them.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(clean)}
}

// WithGroup opens a group on the wrapped handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		clean := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			clean[i] = sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString {
		s := a.Value.String()
		if isSensitiveValue(s) {
			return slog.String(a.Key, MaskValue)
		}
		if redacted := RedactURL(s); redacted != s {
			return slog.String(a.Key, redacted)
		}
	}
	return a
}
