package nut

import (
	"avaneesh/nut-go/pkg/internal/logger"
)

// Logger is the printf-style logger accepted by servers and clients
type Logger = logger.Logger

// LogLevel represents logging level
type LogLevel int

const (
	// LevelDebug shows all log messages (most verbose)
	LevelDebug LogLevel = iota
	// LevelInfo shows info, warn, and error messages (default)
	LevelInfo
	// LevelWarn shows warn and error messages
	LevelWarn
	// LevelError shows only error messages
	LevelError
)

// SetLogLevel sets the global logging level
// Use this to enable/disable different levels of logging output
func SetLogLevel(level LogLevel) {
	logger.SetDefault(logger.NewDefaultLogger(logger.Level(level)))
}

// DefaultLogger returns the global logger set by SetLogLevel
func DefaultLogger() Logger {
	return logger.GetDefault()
}

// NewLogger returns a console logger tagged with a component name
func NewLogger(component string, level LogLevel) Logger {
	return logger.NewDefaultLogger(logger.Level(level)).WithComponent(component)
}

// ParseLogLevel converts "debug", "info", "warn" or "error" into a LogLevel
func ParseLogLevel(s string) (LogLevel, error) {
	level, err := logger.ParseLevel(s)
	return LogLevel(level), err
}

// EnableWireDebug enables or disables logging of every protocol line
// sent and received
func EnableWireDebug(enable bool) {
	logger.SetWireDebug(enable)
}
