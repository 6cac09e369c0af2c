// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package hclogsink forwards records to a hashicorp/go-hclog logger.
package hclogsink

import (
	"context"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/kv"
	"github.com/mia-platform/actorlog/internal/level"
	"github.com/mia-platform/actorlog/internal/runtime"
)

const (
	logIDKey = "logid"
	kindKey  = "kind"
)

var _ forward.Sink = &Sink{}

// Sink writes records through an hclog.Logger. The record target becomes a
// sub-logger name; Audit, Open and Close records are written at Info level with
// a kind attribute.
type Sink struct {
	log hclog.Logger
}

// New returns a sink over log.
func New(log hclog.Logger) *Sink {
	return &Sink{log: log}
}

func (s *Sink) Forward(_ context.Context, record *runtime.Record) error {
	hclogLevel, kind := convertLevel(record.Level)

	log := s.log
	if record.Target != "" {
		log = log.Named(record.Target)
	}
	if hclogLevel < log.GetLevel() {
		return nil
	}

	fields := kv.Collect(record.KV)
	args := make([]any, 0, 2*len(fields)+4)
	args = append(args, logIDKey, uint64(record.ID))
	if kind != "" {
		args = append(args, kindKey, kind)
	}
	for _, field := range fields {
		args = append(args, field.Key, field.Value)
	}

	log.Log(hclogLevel, record.Message, args...)
	return nil
}

func convertLevel(l level.Level) (hclog.Level, string) {
	switch l {
	case level.Trace:
		return hclog.Trace, ""
	case level.Debug:
		return hclog.Debug, ""
	case level.Info:
		return hclog.Info, ""
	case level.Warn:
		return hclog.Warn, ""
	case level.Error:
		return hclog.Error, ""
	default:
		return hclog.Info, strings.ToLower(l.String())
	}
}
