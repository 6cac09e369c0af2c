// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package otelsink

import (
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/kv"
	"github.com/mia-platform/actorlog/internal/kvlog"
	"github.com/mia-platform/actorlog/internal/level"
	"github.com/mia-platform/actorlog/internal/logger"
	"github.com/mia-platform/actorlog/internal/runtime"
)

func setup(t *testing.T) (*runtime.Core, *Sink, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	sink := New(provider)

	core := runtime.NewCore()
	dispatcher := forward.NewDispatcher(logger.NewLogger(io.Discard),
		forward.Route{Name: "otel", Filter: level.FilterAll(level.Trace, level.Open), Sink: sink},
	)
	dispatcher.Install(t.Context(), core)
	return core, sink, recorder
}

func attributeMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, attr := range attrs {
		out[string(attr.Key)] = attr.Value.AsInterface()
	}
	return out
}

func TestActorSpans(t *testing.T) {
	t.Parallel()

	core, _, recorder := setup(t)

	parent := runtime.Spawn(core, runtime.Options{Name: "Supervisor"}, runtime.HandlerFunc(func(*runtime.Context, any) error { return nil }))
	child := runtime.Spawn(core, runtime.Options{Name: "Worker", Parent: parent.AccessLogID()}, runtime.HandlerFunc(func(cx *runtime.Context, msg any) error {
		kvlog.Info(kvlog.WithTarget(cx, "jobs"), "processing", "job", msg)
		return assert.AnError
	}))

	require.NoError(t, child.Send("job-1"))
	<-child.Done()
	parent.Stop()

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	worker, supervisor := spans[0], spans[1]
	assert.Equal(t, "Worker", worker.Name())
	assert.Equal(t, "Supervisor", supervisor.Name())
	assert.Equal(t, supervisor.SpanContext().SpanID(), worker.Parent().SpanID())
	assert.Equal(t, supervisor.SpanContext().TraceID(), worker.SpanContext().TraceID())

	assert.Equal(t, codes.Error, worker.Status().Code)
	assert.Equal(t, assert.AnError.Error(), worker.Status().Description)
	assert.Equal(t, codes.Ok, supervisor.Status().Code)

	events := worker.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "processing", events[0].Name)
	assert.Equal(t, map[string]any{
		logIDKey:         int64(child.AccessLogID()),
		levelKey:         "INFO",
		targetKey:        "jobs",
		kvPrefix + "job": "job-1",
	}, attributeMap(events[0].Attributes))
}

func TestStandaloneSpan(t *testing.T) {
	t.Parallel()

	core, _, recorder := setup(t)
	kvlog.Error(kvlog.WithTarget(core, "boot"), "config missing", "path", "/etc/app.yaml", "opts", map[string]int{"retries": 3})

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "boot", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	events := spans[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "config missing", events[0].Name)
	attrs := attributeMap(events[0].Attributes)
	assert.Equal(t, "/etc/app.yaml", attrs[kvPrefix+"path"])
	assert.Equal(t, int64(3), attrs[kvPrefix+"opts.retries"])
}

func TestUnsignedAttributes(t *testing.T) {
	t.Parallel()

	_, sink, recorder := setup(t)
	record := &runtime.Record{
		ID:      runtime.LogID(math.MaxUint64),
		Level:   level.Info,
		Message: "counters",
		KV: kv.Fields(
			kv.F("max", uint64(math.MaxUint64)),
			kv.F("edge", uint64(math.MaxInt64)),
			kv.F("small", uint64(7)),
		),
	}
	require.NoError(t, sink.Forward(t.Context(), record))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "18446744073709551615", attributeMap(spans[0].Attributes())[logIDKey])

	events := spans[0].Events()
	require.Len(t, events, 1)
	attrs := attributeMap(events[0].Attributes)
	assert.Equal(t, "18446744073709551615", attrs[logIDKey])
	assert.Equal(t, "18446744073709551615", attrs[kvPrefix+"max"])
	assert.Equal(t, int64(math.MaxInt64), attrs[kvPrefix+"edge"])
	assert.Equal(t, int64(7), attrs[kvPrefix+"small"])
}

func TestCloseEndsOpenSpans(t *testing.T) {
	t.Parallel()

	_, sink, recorder := setup(t)
	require.NoError(t, sink.Forward(t.Context(), &runtime.Record{ID: 9, Level: level.Open, Message: "Leaked"}))
	assert.Empty(t, recorder.Ended())
	require.NoError(t, sink.Flush(t.Context()))

	require.NoError(t, sink.Close(t.Context()))
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "Leaked", spans[0].Name())
}

func TestNewExportingRequiresEndpoint(t *testing.T) {
	t.Parallel()

	_, err := NewExporting(t.Context(), "", "actorlog")
	assert.ErrorIs(t, err, ErrMissingEndpoint)
}
