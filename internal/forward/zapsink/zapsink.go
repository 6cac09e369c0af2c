// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package zapsink forwards records to a go.uber.org/zap logger.
package zapsink

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/kv"
	"github.com/mia-platform/actorlog/internal/level"
	"github.com/mia-platform/actorlog/internal/runtime"
)

var (
	_ forward.Sink    = &Sink{}
	_ forward.Flusher = &Sink{}
)

// Sink writes records through a zap.Logger. Trace records are written at Debug
// level; Audit, Open and Close records at Info level with a kind field.
type Sink struct {
	log *zap.Logger
}

// New returns a sink over log.
func New(log *zap.Logger) *Sink {
	return &Sink{log: log}
}

func (s *Sink) Forward(_ context.Context, record *runtime.Record) error {
	zapLevel, kind := convertLevel(record.Level)

	log := s.log
	if record.Target != "" {
		log = log.Named(record.Target)
	}

	entry := log.Check(zapLevel, record.Message)
	if entry == nil {
		return nil
	}

	kvFields := kv.Collect(record.KV)
	fields := make([]zap.Field, 0, len(kvFields)+2)
	fields = append(fields, zap.Uint64("logid", uint64(record.ID)))
	if kind != "" {
		fields = append(fields, zap.String("kind", kind))
	}
	for _, field := range kvFields {
		fields = append(fields, zap.Any(field.Key, field.Value))
	}

	if !record.Time.IsZero() {
		entry.Time = record.Time
	}
	entry.Write(fields...)
	return nil
}

// Flush syncs the underlying zap core.
func (s *Sink) Flush(context.Context) error {
	return s.log.Sync()
}

func convertLevel(l level.Level) (zapcore.Level, string) {
	switch l {
	case level.Trace, level.Debug:
		return zapcore.DebugLevel, ""
	case level.Info:
		return zapcore.InfoLevel, ""
	case level.Warn:
		return zapcore.WarnLevel, ""
	case level.Error:
		return zapcore.ErrorLevel, ""
	default:
		return zapcore.InfoLevel, strings.ToLower(l.String())
	}
}

// NewLogger builds the zap logger used when the sink is configured from file: a
// JSON encoder on the given writer with ISO8601 timestamps.
func NewLogger(w zapcore.WriteSyncer, minLevel zapcore.Level) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.SecondsDurationEncoder

	atomicLevel := zap.NewAtomicLevelAt(minLevel)
	return zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), w, atomicLevel))
}
