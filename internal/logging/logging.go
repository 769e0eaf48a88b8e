// Package logging provides loggers for the rest of the codebase.
package logging

import (
	"go.uber.org/zap"
)

// Logger is an interface used by all logging in this codebase.
type Logger = *zap.SugaredLogger

// NullLogger represents a singleton logger that discards all output.
var NullLogger = zap.NewNop().Sugar()

// LoggerFactory retrieves a named logger for a given module.
type LoggerFactory func(module string) Logger
