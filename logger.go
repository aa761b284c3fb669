package compositor

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
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for the compositor and the components
// it drives (tile manager, renderers). By default nothing is logged.
//
// SetLogger is safe for concurrent use. Pass nil to restore the default
// silent behavior.
//
// Log levels used by the compositor:
//   - [slog.LevelDebug]: per-frame diagnostics (pass counts, culled quads)
//   - [slog.LevelInfo]: lifecycle events (renderer initialized, tree activated)
//   - [slog.LevelWarn]: degraded paths (evictions, aborted copy requests, context loss)
//
// Example:
//
//	compositor.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	setters.Lock()
	defer setters.Unlock()
	for s := range setters.m {
		propagateLogger(s, l)
	}
}

// Logger returns the current compositor logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by components that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// setters holds the live components SetLogger propagates to.
var setters = struct {
	sync.Mutex
	m map[loggerSetter]struct{}
}{m: make(map[loggerSetter]struct{})}

// registerLoggerSetter hands the current logger to v when it accepts one
// and keeps it for later SetLogger calls.
func registerLoggerSetter(v any) {
	s, ok := v.(loggerSetter)
	if !ok {
		return
	}
	setters.Lock()
	setters.m[s] = struct{}{}
	setters.Unlock()
	propagateLogger(s, Logger())
}

func unregisterLoggerSetter(v any) {
	s, ok := v.(loggerSetter)
	if !ok {
		return
	}
	setters.Lock()
	delete(setters.m, s)
	setters.Unlock()
}

func propagateLogger(s loggerSetter, l *slog.Logger) {
	s.SetLogger(l)
}
