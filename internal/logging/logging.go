// Package logging provides the structured logger used throughout crawlctl.
//
// It exposes a struct of callback fields with safe defaults, installed
// once as a package singleton, rather than a bare logger interface, so
// callers can override only the hook they care about, e.g. tests that
// want to assert on anomaly logs without wiring a full logger.
package logging

import (
	"log/slog"
	"os"
	"sync"
)

// Hooks holds function fields, not an interface, so safe defaults can be
// provided and overriding one hook never requires implementing the rest.
type Hooks struct {
	Info    func(msg string, args ...any)
	Warn    func(msg string, args ...any)
	Error   func(msg string, args ...any)
	Anomaly func(msg string, args ...any) // invariant violations, e.g. negative-usage clamps
}

func New(logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return &Hooks{
		Info:    logger.Info,
		Warn:    logger.Warn,
		Error:   logger.Error,
		Anomaly: func(msg string, args ...any) { logger.Warn("anomaly: "+msg, args...) },
	}
}

var (
	mu  sync.RWMutex
	lcm = New(nil)
)

// Get returns the process-wide logging hooks singleton.
func Get() *Hooks {
	mu.RLock()
	defer mu.RUnlock()
	return lcm
}

// Set installs the process-wide logging hooks singleton. Call once at
// startup, before any component logs.
func Set(h *Hooks) {
	mu.Lock()
	defer mu.Unlock()
	lcm = h
}
