// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package slogsink forwards records to a log/slog handler.
package slogsink

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/kv"
	"github.com/mia-platform/actorlog/internal/level"
	"github.com/mia-platform/actorlog/internal/runtime"
)

// LevelTrace is the slog level used for Trace records.
const LevelTrace = slog.LevelDebug - 4

var _ forward.Sink = &Sink{}

// Sink hands records to a slog.Handler. Nested maps become groups; Audit, Open
// and Close records are handled at Info level with a kind attribute.
type Sink struct {
	handler slog.Handler
}

// New returns a sink over handler.
func New(handler slog.Handler) *Sink {
	return &Sink{handler: handler}
}

func (s *Sink) Forward(ctx context.Context, record *runtime.Record) error {
	slogLevel, kind := convertLevel(record.Level)
	if !s.handler.Enabled(ctx, slogLevel) {
		return nil
	}

	out := slog.NewRecord(record.Time, slogLevel, record.Message, 0)
	out.AddAttrs(slog.Uint64("logid", uint64(record.ID)))
	if record.Target != "" {
		out.AddAttrs(slog.String("target", record.Target))
	}
	if kind != "" {
		out.AddAttrs(slog.String("kind", kind))
	}
	for _, field := range kv.Collect(record.KV) {
		out.AddAttrs(attr(field.Key, field.Value))
	}

	return s.handler.Handle(ctx, out)
}

func attr(key string, value any) slog.Attr {
	group, ok := value.(map[string]any)
	if !ok {
		return slog.Any(key, value)
	}

	attrs := make([]any, 0, len(group))
	for _, name := range slices.Sorted(maps.Keys(group)) {
		attrs = append(attrs, attr(name, group[name]))
	}
	return slog.Group(key, attrs...)
}

func convertLevel(l level.Level) (slog.Level, string) {
	switch l {
	case level.Trace:
		return LevelTrace, ""
	case level.Debug:
		return slog.LevelDebug, ""
	case level.Info:
		return slog.LevelInfo, ""
	case level.Warn:
		return slog.LevelWarn, ""
	case level.Error:
		return slog.LevelError, ""
	default:
		return slog.LevelInfo, strings.ToLower(l.String())
	}
}
