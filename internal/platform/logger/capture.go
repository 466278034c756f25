package logger

import (
	"context"
	"log/slog"
	"sync"
)

// Entry is a captured log record, flattened for assertions.
type Entry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// CaptureHandler is a memory-backed slog.Handler for tests.
type CaptureHandler struct {
	mu      *sync.Mutex
	entries *[]Entry
	attrs   []slog.Attr
}

// NewCaptureHandler creates an empty capture handler.
func NewCaptureHandler() *CaptureHandler {
	return &CaptureHandler{mu: &sync.Mutex{}, entries: &[]Entry{}}
}

// Enabled satisfies slog.Handler.
func (h *CaptureHandler) Enabled(context.Context, slog.Level) bool { return true }

// Handle satisfies slog.Handler.
func (h *CaptureHandler) Handle(_ context.Context, r slog.Record) error {
	entry := Entry{Level: r.Level, Message: r.Message, Attrs: make(map[string]any)}
	for _, a := range h.attrs {
		entry.Attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		entry.Attrs[a.Key] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	*h.entries = append(*h.entries, entry)
	h.mu.Unlock()
	return nil
}

// WithAttrs satisfies slog.Handler. Derived handlers share the entry log.
func (h *CaptureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &CaptureHandler{mu: h.mu, entries: h.entries, attrs: merged}
}

// WithGroup satisfies slog.Handler; groups are flattened.
func (h *CaptureHandler) WithGroup(string) slog.Handler { return h }

// Entries returns a copy of everything captured so far.
func (h *CaptureHandler) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Entry(nil), *h.entries...)
}

// Messages returns the captured messages at or above level.
func (h *CaptureHandler) Messages(level slog.Level) []string {
	var out []string
	for _, e := range h.Entries() {
		if e.Level >= level {
			out = append(out, e.Message)
		}
	}
	return out
}
