// Package logging provides structured logging with per-module log levels.
//
// Output is routed automatically: stdout (text or json) when connected,
// systemd journal when available, and always a ring buffer that keeps
// recent entries for the event bus. Initialize once at startup, then take
// module loggers:
//
//	logging.Initialize(logging.Config{Level: "info", Format: "text"})
//	logger := logging.GetLogger("recorder").With("session_id", id)
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const historySize = 1000

// Logger is a duck-typed interface satisfied by *slog.Logger. Packages
// accept this instead of the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mu            sync.RWMutex
	cfg           Config
	initialized   bool
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevels  = make(map[string]*slog.LevelVar)
	history       *RingBuffer
	callback      LogCallback
)

// Initialize sets up the logging system. Module loggers created before
// this call are rebuilt so they pick up the configured handler chain.
func Initialize(c Config) {
	mu.Lock()
	defer mu.Unlock()

	cfg = c
	initialized = true
	history = NewRingBuffer(historySize)

	global := levelOrDefault(c.Level, slog.LevelInfo)

	for module, lv := range moduleLevels {
		lv.Set(moduleLevel(module, global))
		moduleLoggers[module] = slog.New(buildHandler(c.Format, lv)).With("module", module)
	}

	root := &slog.LevelVar{}
	root.Set(global)
	slog.SetDefault(slog.New(buildHandler(c.Format, root)))
}

// GetLogger returns the logger for a module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	if logger, ok := moduleLoggers[module]; ok {
		mu.RUnlock()
		return logger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if logger, ok := moduleLoggers[module]; ok {
		return logger
	}

	lv := &slog.LevelVar{}
	format := "text"
	global := slog.LevelInfo
	if initialized {
		format = cfg.Format
		global = levelOrDefault(cfg.Level, slog.LevelInfo)
	}
	lv.Set(moduleLevel(module, global))

	logger := slog.New(buildHandler(format, lv)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevels[module] = lv
	return logger
}

// SetLevel changes one module's level at runtime.
func SetLevel(module, level string) {
	mu.Lock()
	defer mu.Unlock()
	if lv, ok := moduleLevels[module]; ok {
		lv.Set(levelOrDefault(level, lv.Level()))
	}
}

// History returns the ring buffer of recent log entries, nil before Initialize.
func History() *RingBuffer {
	mu.RLock()
	defer mu.RUnlock()
	return history
}

// SetLogCallback registers a callback invoked for each new entry. Used to
// publish log events to the bus without an import cycle.
func SetLogCallback(cb LogCallback) {
	mu.Lock()
	defer mu.Unlock()
	callback = cb
}

// moduleLevel resolves the effective level for a module. Callers hold mu.
func moduleLevel(module string, global slog.Level) slog.Level {
	if s, ok := cfg.Modules[module]; ok {
		return levelOrDefault(s, global)
	}
	return global
}

// buildHandler assembles the stdout/journal/buffer handler chain.
func buildHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if stdoutUsable() {
		if format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(os.Stdout, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stdout, opts))
		}
	}
	if JournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	// The buffer handler checks for the ring buffer dynamically, so it is
	// safe to attach before Initialize has run.
	handlers = append(handlers, NewBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewTeeHandler(handlers...)
}

// stdoutUsable reports whether stdout goes anywhere worth writing to
// (terminal, pipe, socket or regular file; not /dev/null).
func stdoutUsable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

func levelOrDefault(s string, fallback slog.Level) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}
