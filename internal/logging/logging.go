// Package logging provides the structured logger shared by the ingest
// service and the VAD/dialogue worker, built on log/slog.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu     sync.RWMutex
	root   *slog.Logger
	levelV = new(slog.LevelVar)
)

func init() {
	root = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: levelV}))
}

// Init configures the package-level root logger from a LOG_LEVEL string
// ("debug", "info", "warn", "error"; defaults to "info" on an unknown value).
func Init(levelName string) {
	mu.Lock()
	defer mu.Unlock()
	levelV.Set(parseLevel(levelName))
	root = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: levelV}))
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// For returns a logger scoped to the given component name.
func For(component string) *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.With("component", component)
}

// Root returns the unscoped package logger.
func Root() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}
