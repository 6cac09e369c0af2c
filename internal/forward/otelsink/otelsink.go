// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package otelsink turns actor lifecycles into OpenTelemetry spans.
//
// An Open record starts a span for its log id and the matching Close record ends
// it, with an error status when the actor failed. Records logged in between are
// added to the span as events. Records with no open span get a short span of
// their own.
package otelsink

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/kv"
	"github.com/mia-platform/actorlog/internal/level"
	"github.com/mia-platform/actorlog/internal/runtime"
)

const (
	// TracerName is the instrumentation name used for the tracer.
	TracerName = "github.com/mia-platform/actorlog"

	logIDKey  = "actorlog.logid"
	levelKey  = "actorlog.level"
	targetKey = "actorlog.target"
	kvPrefix  = "actorlog.kv."
)

var (
	_ forward.Sink    = &Sink{}
	_ forward.Flusher = &Sink{}
	_ forward.Closer  = &Sink{}
)

// Sink records actor lifecycles on a tracer.
type Sink struct {
	tracer   trace.Tracer
	provider *Provider

	lock  sync.Mutex
	spans map[runtime.LogID]trace.Span
}

// New returns a sink creating spans from provider.
func New(provider trace.TracerProvider) *Sink {
	return &Sink{
		tracer: provider.Tracer(TracerName),
		spans:  make(map[runtime.LogID]trace.Span),
	}
}

func (s *Sink) Forward(ctx context.Context, record *runtime.Record) error {
	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	fields := kv.Flatten(record.KV)

	switch record.Level {
	case level.Open:
		s.open(ctx, record, fields, timestamp)
	case level.Close:
		s.close(record, fields, timestamp)
	default:
		s.event(ctx, record, fields, timestamp)
	}
	return nil
}

func (s *Sink) open(ctx context.Context, record *runtime.Record, fields []kv.Field, timestamp time.Time) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, field := range fields {
		if field.Key != "parent" {
			continue
		}
		if parentID, ok := field.Value.(uint64); ok {
			if parent, found := s.spans[runtime.LogID(parentID)]; found {
				ctx = trace.ContextWithSpan(ctx, parent)
			}
		}
	}

	name := record.Message
	if name == "" {
		name = "actor"
	}

	_, span := s.tracer.Start(ctx, name,
		trace.WithTimestamp(timestamp),
		trace.WithAttributes(attributes(record, fields)...),
	)
	if previous, found := s.spans[record.ID]; found {
		previous.End(trace.WithTimestamp(timestamp))
	}
	s.spans[record.ID] = span
}

func (s *Sink) close(record *runtime.Record, fields []kv.Field, timestamp time.Time) {
	s.lock.Lock()
	span, found := s.spans[record.ID]
	delete(s.spans, record.ID)
	s.lock.Unlock()

	if !found {
		return
	}

	span.SetAttributes(kvAttributes(fields)...)
	if failed(fields) {
		span.SetStatus(codes.Error, record.Message)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(timestamp))
}

func (s *Sink) event(ctx context.Context, record *runtime.Record, fields []kv.Field, timestamp time.Time) {
	s.lock.Lock()
	span, found := s.spans[record.ID]
	s.lock.Unlock()

	standalone := !found
	if standalone {
		name := record.Target
		if name == "" {
			name = strings.ToLower(record.Level.String())
		}
		_, span = s.tracer.Start(ctx, name, trace.WithTimestamp(timestamp), trace.WithAttributes(unsignedAttribute(logIDKey, uint64(record.ID))))
	}

	eventName := record.Message
	if eventName == "" {
		eventName = record.Level.String()
	}
	span.AddEvent(eventName,
		trace.WithTimestamp(timestamp),
		trace.WithAttributes(attributes(record, fields)...),
	)
	if record.Level == level.Error {
		span.SetStatus(codes.Error, record.Message)
	}

	if standalone {
		span.End(trace.WithTimestamp(timestamp))
	}
}

// NewExporting returns a sink owning an OTLP/HTTP provider; the provider is
// flushed and shut down with the sink.
func NewExporting(ctx context.Context, endpoint, serviceName string) (*Sink, error) {
	provider, err := NewProvider(ctx, endpoint, serviceName)
	if err != nil {
		return nil, err
	}

	sink := New(provider)
	sink.provider = provider
	return sink, nil
}

// Flush exports the ended spans when the sink owns its provider.
func (s *Sink) Flush(ctx context.Context) error {
	if s.provider == nil {
		return nil
	}
	return s.provider.Flush(ctx)
}

// Close ends the spans of actors that never logged their Close record.
func (s *Sink) Close(ctx context.Context) error {
	s.lock.Lock()
	spans := s.spans
	s.spans = make(map[runtime.LogID]trace.Span)
	s.lock.Unlock()

	for _, span := range spans {
		span.End()
	}

	if s.provider == nil {
		return nil
	}
	return s.provider.Close(ctx)
}

func failed(fields []kv.Field) bool {
	for _, field := range fields {
		if field.Key == "failed" {
			value, ok := field.Value.(bool)
			return ok && value
		}
	}
	return false
}

func attributes(record *runtime.Record, fields []kv.Field) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(fields)+3)
	attrs = append(attrs,
		unsignedAttribute(logIDKey, uint64(record.ID)),
		attribute.String(levelKey, record.Level.String()),
	)
	if record.Target != "" {
		attrs = append(attrs, attribute.String(targetKey, record.Target))
	}
	return append(attrs, kvAttributes(fields)...)
}

func kvAttributes(fields []kv.Field) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(fields))
	for _, field := range fields {
		key := attribute.Key(kvPrefix + field.Key)
		switch value := field.Value.(type) {
		case string:
			attrs = append(attrs, key.String(value))
		case bool:
			attrs = append(attrs, key.Bool(value))
		case int64:
			attrs = append(attrs, key.Int64(value))
		case uint64:
			attrs = append(attrs, unsignedAttribute(key, value))
		case float64:
			attrs = append(attrs, key.Float64(value))
		case nil:
			attrs = append(attrs, key.String(""))
		}
	}
	return attrs
}

// unsignedAttribute keeps value as an integer while it fits an int64 and falls
// back to its decimal string above that.
func unsignedAttribute(key attribute.Key, value uint64) attribute.KeyValue {
	if value > math.MaxInt64 {
		return key.String(strconv.FormatUint(value, 10))
	}
	return key.Int64(int64(value))
}
