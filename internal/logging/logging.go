// Package logging provides a thin, process-wide wrapper over log/slog.
//
// Unlike a hot-reloadable agent, watchcamd loads its configuration once at
// startup (see internal/config) and never changes log level at runtime, so
// this package skips the switchable-handler machinery and just builds one
// slog.Logger per component, scoped by a "component" attribute.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var base atomic.Pointer[slog.Logger]

func init() {
	base.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// Init sets the process-wide log level. Call once, before any worker starts.
func Init(level string) {
	base.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)})))
}

// L returns a logger scoped to the given component name, e.g. logging.L("capture.cam1").
func L(component string) *slog.Logger {
	return base.Load().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
