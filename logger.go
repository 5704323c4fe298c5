package renderloop

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine,
// including the render thread.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for renderloop and its backend packages.
// By default, renderloop produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by renderloop:
//   - [slog.LevelDebug]: per-iteration diagnostics (flag consumption, skips)
//   - [slog.LevelInfo]: lifecycle events (device created, swapchain resized)
//   - [slog.LevelWarn]: non-fatal issues (signals skipped for missing state)
//   - [slog.LevelError]: fatal render-thread failures before the loop stops
//
// Example:
//
//	// Enable info-level logging to stderr:
//	renderloop.SetLogger(slog.Default())
//
//	// Enable debug-level logging for full diagnostics:
//	renderloop.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	// Re-propagate to every adopted backend so cached loggers follow.
	targetsMu.Lock()
	targets := make([]loggerSetter, 0, len(loggerTargets))
	for ls := range loggerTargets {
		targets = append(targets, ls)
	}
	targetsMu.Unlock()
	for _, ls := range targets {
		ls.SetLogger(l)
	}
}

// Logger returns the current logger used by renderloop.
// Backend packages (backend/wgpu, backend/vulkan, ...) call this to share
// the same logger configuration without introducing import cycles.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by backends that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// loggerTargets tracks the backends adopted by live loops so SetLogger
// can re-propagate to them. NewLoop adds a backend, Loop.Close removes
// it again.
var (
	targetsMu     sync.Mutex
	loggerTargets = map[loggerSetter]struct{}{}
)

// adoptLoggerTarget passes the current logger to a backend if it
// implements the loggerSetter interface, and registers it so later
// SetLogger calls reach it too. Called from NewLoop; a backend
// constructed before SetLogger still receives the configuration in
// effect when the loop adopts it.
func adoptLoggerTarget(b Backend) {
	ls, ok := b.(loggerSetter)
	if !ok {
		return
	}
	targetsMu.Lock()
	loggerTargets[ls] = struct{}{}
	targetsMu.Unlock()
	ls.SetLogger(Logger())
}

// releaseLoggerTarget drops a backend from SetLogger re-propagation.
// Called from Loop.Close.
func releaseLoggerTarget(b Backend) {
	ls, ok := b.(loggerSetter)
	if !ok {
		return
	}
	targetsMu.Lock()
	delete(loggerTargets, ls)
	targetsMu.Unlock()
}
