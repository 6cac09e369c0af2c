// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package logrsink forwards records to a go-logr/logr logger.
package logrsink

import (
	"context"
	"strings"

	"github.com/go-logr/logr"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/kv"
	"github.com/mia-platform/actorlog/internal/level"
	"github.com/mia-platform/actorlog/internal/runtime"
)

// Verbosity of Debug and Trace records; everything else is logged at V(0).
const (
	DebugVerbosity = 1
	TraceVerbosity = 2
)

var _ forward.Sink = &Sink{}

// Sink writes records through a logr.Logger. Error records use Error; Warn,
// Audit, Open and Close records carry a kind value since logr has no such levels.
type Sink struct {
	log logr.Logger
}

// New returns a sink over log.
func New(log logr.Logger) *Sink {
	return &Sink{log: log}
}

func (s *Sink) Forward(_ context.Context, record *runtime.Record) error {
	log := s.log
	if record.Target != "" {
		log = log.WithName(record.Target)
	}

	verbosity, kind := convertLevel(record.Level)
	if record.Level != level.Error {
		log = log.V(verbosity)
		if !log.Enabled() {
			return nil
		}
	}

	fields := kv.Collect(record.KV)
	keysAndValues := make([]any, 0, 2*len(fields)+4)
	keysAndValues = append(keysAndValues, "logid", uint64(record.ID))
	if kind != "" {
		keysAndValues = append(keysAndValues, "kind", kind)
	}
	for _, field := range fields {
		keysAndValues = append(keysAndValues, field.Key, field.Value)
	}

	if record.Level == level.Error {
		log.Error(nil, record.Message, keysAndValues...)
		return nil
	}
	log.Info(record.Message, keysAndValues...)
	return nil
}

func convertLevel(l level.Level) (int, string) {
	switch l {
	case level.Trace:
		return TraceVerbosity, ""
	case level.Debug:
		return DebugVerbosity, ""
	case level.Info, level.Error:
		return 0, ""
	default:
		return 0, strings.ToLower(l.String())
	}
}
