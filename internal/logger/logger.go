// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"io"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mia-platform/actorlog/internal/level"
)

var (
	// nullLogger is a logger that discards all log messages.
	nullLogger = &instance{log: hclog.NewNullLogger()}
)

// LevelFromString converts a level name to the severity used by the process
// logger. Unknown names and levels other than the severities and Off fall
// back to Info.
func LevelFromString(name string) level.Level {
	l := level.LevelFromString(name)
	if !l.IsSeverity() && l != level.Off {
		return level.Info
	}
	return l
}

// convertLevel maps a severity to the hclog level. Off silences the logger.
func convertLevel(l level.Level) hclog.Level {
	switch l {
	case level.Trace:
		return hclog.Trace
	case level.Debug:
		return hclog.Debug
	case level.Info:
		return hclog.Info
	case level.Warn:
		return hclog.Warn
	case level.Error:
		return hclog.Error
	case level.Off:
		return hclog.Off
	default:
		return hclog.Info
	}
}

// Logger describes the interface that must be implemented by all loggers
type Logger interface {
	// WithName returns a new Logger instance with the specified name.
	WithName(name string) Logger

	// With returns a new Logger instance that always emits the given key/value pairs.
	With(args ...interface{}) Logger

	// SetLevel updates the logger level.
	SetLevel(level level.Level)

	// Enabled reports whether a message at l would be emitted.
	Enabled(l level.Level) bool

	// Trace emit a message and key/value pairs at the TRACE level.
	Trace(msg string, args ...interface{})

	// Debug emit a message and key/value pairs at the DEBUG level.
	Debug(msg string, args ...interface{})

	// Info emit a message and key/value pairs at the INFO level.
	Info(msg string, args ...interface{})

	// Warn emit a message and key/value pairs at the WARN level.
	Warn(msg string, args ...interface{})

	// Error emit a message and key/value pairs at the ERROR level.
	Error(msg string, args ...interface{})
}

// Make sure that instance is a Logger.
var _ Logger = &instance{}

// instance is a Logger implementation.
type instance struct {
	log hclog.Logger
}

// NewLogger creates a new JSON logger instance writing to writer at Info level.
func NewLogger(writer io.Writer) Logger {
	return &instance{
		log: hclog.New(&hclog.LoggerOptions{
			JSONFormat: true,
			Output:     writer,
			TimeFn:     time.Now,
			Level:      convertLevel(level.Info),
		}),
	}
}

func (i instance) WithName(name string) Logger {
	return &instance{
		log: i.log.ResetNamed(name),
	}
}

func (i instance) With(args ...interface{}) Logger {
	return &instance{
		log: i.log.With(args...),
	}
}

func (i instance) SetLevel(l level.Level) {
	i.log.SetLevel(convertLevel(l))
}

func (i instance) Enabled(l level.Level) bool {
	if l == level.Off {
		return false
	}
	return i.log.GetLevel() <= convertLevel(l)
}

func (i instance) Trace(msg string, args ...interface{}) {
	i.log.Trace(msg, args...)
}

func (i instance) Debug(msg string, args ...interface{}) {
	i.log.Debug(msg, args...)
}

func (i instance) Info(msg string, args ...interface{}) {
	i.log.Info(msg, args...)
}

func (i instance) Warn(msg string, args ...interface{}) {
	i.log.Warn(msg, args...)
}

func (i instance) Error(msg string, args ...interface{}) {
	i.log.Error(msg, args...)
}
