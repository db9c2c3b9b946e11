package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
)

var entrySeq atomic.Uint64

// BufferHandler is a slog.Handler that writes entries to the global ring
// buffer and notifies the registered log callback. It resolves the buffer
// and callback per record, so handlers built before Initialize still work.
type BufferHandler struct {
	level slog.Leveler
	attrs []slog.Attr
}

// NewBufferHandler creates a buffer handler at the given level.
func NewBufferHandler(level slog.Leveler) *BufferHandler {
	return &BufferHandler{level: level}
}

// Enabled implements slog.Handler.
func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	mu.RLock()
	buf := history
	cb := callback
	mu.RUnlock()
	if buf == nil && cb == nil {
		return nil
	}

	entry := LogEntry{
		Seq:       entrySeq.Add(1),
		Timestamp: r.Time,
		Level:     strings.ToLower(r.Level.String()),
		Message:   r.Message,
	}

	collect := func(attr slog.Attr) {
		if attr.Key == "module" {
			entry.Module = attr.Value.String()
			return
		}
		if entry.Attributes == nil {
			entry.Attributes = make(map[string]any)
		}
		entry.Attributes[attr.Key] = attr.Value.Any()
	}
	for _, attr := range h.attrs {
		collect(attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		collect(attr)
		return true
	})

	if buf != nil {
		buf.Write(entry)
	}
	if cb != nil {
		cb(entry)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &BufferHandler{level: h.level, attrs: merged}
}

// WithGroup implements slog.Handler.
func (h *BufferHandler) WithGroup(string) slog.Handler {
	// Groups are not meaningful for buffered entries; attributes keep
	// their leaf keys.
	return h
}
