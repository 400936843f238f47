package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// SessionIDKey is the log attribute LogHandler uses to route records to a
// session's observers.
const SessionIDKey = "session_id"

// LogHandler is a slog.Handler that tees records into a Bus. Records carrying
// a session_id attribute are rendered to a single line and published to that
// session as a KindLog event; everything is then passed to the wrapped
// handler unchanged. Publish failures never fail the log call.
type LogHandler struct {
	inner     slog.Handler
	bus       Bus
	sessionID string
}

// NewLogHandler wraps inner so session-scoped records also reach the bus.
func NewLogHandler(inner slog.Handler, bus Bus) *LogHandler {
	return &LogHandler{inner: inner, bus: bus}
}

func (h *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	sessionID := h.sessionID
	var b strings.Builder
	b.WriteString(r.Level.String())
	b.WriteByte(' ')
	b.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == SessionIDKey {
			sessionID = a.Value.String()
			return true
		}
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
		return true
	})

	if sessionID != "" {
		_ = h.bus.Publish(ctx, sessionID, Event{
			Kind:    KindLog,
			Message: b.String(),
			At:      r.Time.UTC(),
		})
	}
	return h.inner.Handle(ctx, r)
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := &LogHandler{
		inner:     h.inner.WithAttrs(attrs),
		bus:       h.bus,
		sessionID: h.sessionID,
	}
	for _, a := range attrs {
		if a.Key == SessionIDKey {
			clone.sessionID = a.Value.String()
		}
	}
	return clone
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	return &LogHandler{
		inner:     h.inner.WithGroup(name),
		bus:       h.bus,
		sessionID: h.sessionID,
	}
}
