package logging

import (
	"context"
	"errors"
	"log/slog"
)

// TeeHandler duplicates records across several slog handlers (stdout,
// journald, the ring buffer) so one logger feeds every sink.
type TeeHandler struct {
	sinks []slog.Handler
}

// NewTeeHandler builds a handler over the given sinks.
func NewTeeHandler(sinks ...slog.Handler) *TeeHandler {
	return &TeeHandler{sinks: sinks}
}

// Enabled reports whether at least one sink wants records at this level.
func (t *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range t.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers the record to every sink that accepts its level. Each
// sink gets its own clone; a failing sink does not stop the others.
func (t *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, s := range t.sinks {
		if !s.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs returns a tee whose sinks all carry the extra attributes.
func (t *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(t.sinks))
	for i, s := range t.sinks {
		next[i] = s.WithAttrs(attrs)
	}
	return &TeeHandler{sinks: next}
}

// WithGroup returns a tee whose sinks all open the named group.
func (t *TeeHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(t.sinks))
	for i, s := range t.sinks {
		next[i] = s.WithGroup(name)
	}
	return &TeeHandler{sinks: next}
}
