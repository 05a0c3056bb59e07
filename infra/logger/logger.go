// Package logger provides the zerolog implementation of the core logger.
package logger

import corelogger "github.com/keilos1/harvestplan/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards everything.
type NopLogger = corelogger.NopLogger

// New returns a Logger tagged with component. The output format follows
// APP_ENV: "dev" gives a console writer, anything else JSON lines.
func New(component string) Logger {
	return NewZerologLogger(component)
}
