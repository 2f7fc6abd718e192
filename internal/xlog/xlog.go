// Package xlog is the process-wide structured logging facade used by pool,
// warp and dispatcher for lifecycle and error events.
//
// It mirrors the package-level settable-logger pattern used throughout this
// corpus: a single global logger, defaulting to a no-op, swappable at process
// startup via SetLogger. Unlike a bespoke logger interface, the concrete
// Event type is github.com/joeycumines/stumpy's, via logiface, so hosts that
// already configure a logiface pipeline can plug this module straight in.
package xlog

import (
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

type (
	// Event is the concrete logiface event type used by this module.
	Event = stumpy.Event

	// Logger is the logiface logger type used by this module's packages.
	Logger = logiface.Logger[*Event]

	// Level aliases logiface.Level, re-exported for callers that want to
	// gate expensive log-field construction without an import of logiface.
	Level = logiface.Level
)

const (
	LevelDisabled     = logiface.LevelDisabled
	LevelEmergency    = logiface.LevelEmergency
	LevelAlert        = logiface.LevelAlert
	LevelCritical     = logiface.LevelCritical
	LevelError        = logiface.LevelError
	LevelWarning      = logiface.LevelWarning
	LevelNotice       = logiface.LevelNotice
	LevelInformational = logiface.LevelInformational
	LevelDebug        = logiface.LevelDebug
	LevelTrace        = logiface.LevelTrace
)

var global struct {
	sync.RWMutex
	logger *Logger
}

// SetLogger installs the process-wide logger used by this module's packages.
// A nil logger (the default) disables logging entirely - every Builder
// method on a nil *Logger is documented as safe, and simply no-ops.
func SetLogger(l *Logger) {
	global.Lock()
	defer global.Unlock()
	global.logger = l
}

// L returns the currently installed logger. Never nil in the sense that
// every method remains safe to call - it may, however, literally be a nil
// *Logger, which is the documented no-op state.
func L() *Logger {
	global.RLock()
	defer global.RUnlock()
	return global.logger
}

// New constructs a ready-to-install Logger backed by stumpy, forwarding
// options to logiface.New. Convenience for hosts that don't want to depend
// on logiface/stumpy directly just to call SetLogger.
func New(options ...logiface.Option[*Event]) *Logger {
	return logiface.New[*Event](options...)
}
