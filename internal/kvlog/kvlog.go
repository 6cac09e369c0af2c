// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package kvlog is the logging API used by actors and by code running outside of
// actors. Each call takes a log source, a message and key/value arguments:
//
//	kvlog.Info(cx, "connection accepted", "addr", kv.Display(addr), "retries", 3)
//	kvlog.Audit(core, "UserLogin", "user", name)
//
// Arguments are alternating key/value pairs; a kv.Field stands on its own.
// Nothing is converted unless the core filter allows the record level.
package kvlog

import (
	"github.com/mia-platform/actorlog/internal/kv"
	"github.com/mia-platform/actorlog/internal/level"
	"github.com/mia-platform/actorlog/internal/runtime"
)

// BadKey is the key used for arguments found where a string key was expected.
const BadKey = "!BADKEY"

// Source is anything a record can be logged against: the core itself, an actor
// context, or a LogCx.
type Source interface {
	AccessLogID() runtime.LogID
	AccessCore() *runtime.Core
}

// IDSource provides only a log id; pair it with a core using On.
type IDSource interface {
	AccessLogID() runtime.LogID
}

type targeter interface {
	LogTarget() string
}

// LogCx carries a log id and the core to log to, for code that logs on behalf
// of an actor without holding its context.
type LogCx struct {
	id   runtime.LogID
	core *runtime.Core
}

// NewLogCx returns a LogCx logging against id on core.
func NewLogCx(id runtime.LogID, core *runtime.Core) LogCx {
	return LogCx{id: id, core: core}
}

// On returns a LogCx with the id of src and the given core.
func On(src IDSource, core *runtime.Core) LogCx {
	return NewLogCx(src.AccessLogID(), core)
}

// AccessLogID returns the log id.
func (cx LogCx) AccessLogID() runtime.LogID {
	return cx.id
}

// AccessCore returns the core.
func (cx LogCx) AccessCore() *runtime.Core {
	return cx.core
}

type targeted struct {
	Source
	target string
}

func (t targeted) LogTarget() string {
	return t.target
}

// WithTarget returns a source whose records carry target.
func WithTarget(src Source, target string) Source {
	if t, ok := src.(targeted); ok {
		src = t.Source
	}
	return targeted{Source: src, target: target}
}

// Trace logs at Trace level.
func Trace(src Source, msg string, args ...any) {
	Log(src, level.Trace, msg, args...)
}

// Debug logs at Debug level.
func Debug(src Source, msg string, args ...any) {
	Log(src, level.Debug, msg, args...)
}

// Info logs at Info level.
func Info(src Source, msg string, args ...any) {
	Log(src, level.Info, msg, args...)
}

// Warn logs at Warn level.
func Warn(src Source, msg string, args ...any) {
	Log(src, level.Warn, msg, args...)
}

// Error logs at Error level.
func Error(src Source, msg string, args ...any) {
	Log(src, level.Error, msg, args...)
}

// Audit logs an audit record. Audit records carry no free text: tag names the
// kind of event and the key/value pairs carry its data.
func Audit(src Source, tag string, args ...any) {
	Log(src, level.Audit, tag, args...)
}

// Log logs a record at level l.
func Log(src Source, l level.Level, msg string, args ...any) {
	core := src.AccessCore()
	if core == nil || !core.Enabled(l) {
		return
	}

	target := ""
	if t, ok := src.(targeter); ok {
		target = t.LogTarget()
	}

	core.Log(src.AccessLogID(), l, target, msg, Args(args...))
}

// Args turns alternating key/value arguments into a Scan. The arguments are
// only converted when the scan is replayed.
func Args(args ...any) kv.Scan {
	if len(args) == 0 {
		return kv.Empty
	}

	return func(out kv.Visitor) {
		for i := 0; i < len(args); {
			switch arg := args[i].(type) {
			case kv.Field:
				arg.Visit(kv.NoKey, out)
				i++
			case string:
				if i+1 == len(args) {
					out.Null(kv.Named(arg))
					i++
					continue
				}
				kv.Visit(kv.Named(arg), args[i+1], out)
				i += 2
			default:
				kv.Visit(kv.Named(BadKey), arg, out)
				i++
			}
		}
	}
}
