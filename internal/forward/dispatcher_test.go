// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package forward_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/forward/fake"
	"github.com/mia-platform/actorlog/internal/kvlog"
	"github.com/mia-platform/actorlog/internal/level"
	"github.com/mia-platform/actorlog/internal/logger"
	"github.com/mia-platform/actorlog/internal/runtime"
)

func TestDispatcherRouting(t *testing.T) {
	t.Parallel()

	errorsOnly := fake.NewFakeSink(t)
	audit := fake.NewFakeSink(t)
	everything := fake.NewFakeSink(t)

	dispatcher := forward.NewDispatcher(logger.NewLogger(new(bytes.Buffer)),
		forward.Route{Name: "errors", Filter: level.FilterAll(level.Error), Sink: errorsOnly},
		forward.Route{Name: "audit", Filter: level.FilterAll(level.Audit), Sink: audit},
		forward.Route{Name: "all", Filter: level.FilterAll(level.Trace, level.Audit, level.Open), Sink: everything},
		forward.Route{Name: "disabled", Sink: fake.NewFakeSink(t)},
		forward.Route{Name: "no sink", Filter: level.FilterAll(level.Trace)},
	)
	require.Len(t, dispatcher.Routes(), 3)
	assert.Equal(t, level.FilterAll(level.Trace, level.Audit, level.Open), dispatcher.Filter())

	core := runtime.NewCore()
	dispatcher.Install(t.Context(), core)

	kvlog.Debug(core, "starting")
	kvlog.Error(kvlog.WithTarget(core, "db"), "query failed", "code", 42)
	kvlog.Audit(core, "Login", "user", "alice")

	assert.Equal(t, []string{"ERROR #0 db: query failed {code=42}"}, errorsOnly.Lines())
	assert.Equal(t, []string{"AUDIT #0 Login {user=alice}"}, audit.Lines())
	assert.Equal(t, []string{
		"DEBUG #0 starting",
		"ERROR #0 db: query failed {code=42}",
		"AUDIT #0 Login {user=alice}",
	}, everything.Lines())
}

func TestDispatcherSinkErrors(t *testing.T) {
	t.Parallel()

	buffer := new(bytes.Buffer)
	broken := fake.NewFakeSink(t)
	broken.Err = errors.New("disk full")
	healthy := fake.NewFakeSink(t)

	dispatcher := forward.NewDispatcher(logger.NewLogger(buffer),
		forward.Route{Name: "broken", Filter: level.FilterAll(level.Info), Sink: broken},
		forward.Route{Name: "healthy", Filter: level.FilterAll(level.Info), Sink: healthy},
	)

	core := runtime.NewCore()
	dispatcher.Install(t.Context(), core)
	kvlog.Info(core, "hello")

	assert.Equal(t, []string{"INFO #0 hello"}, healthy.Lines())
	assert.Contains(t, buffer.String(), "forwarding record failed")
	assert.Contains(t, buffer.String(), "disk full")

	err := dispatcher.Close(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, broken.Err)
	assert.Contains(t, err.Error(), "broken: disk full")
	assert.True(t, healthy.Closed())
	assert.Equal(t, 1, healthy.Flushes())
}

func TestDispatcherSchedule(t *testing.T) {
	t.Parallel()

	sink := fake.NewFakeSink(t)
	dispatcher := forward.NewDispatcher(logger.NewLogger(new(bytes.Buffer)),
		forward.Route{Name: "buffered", Filter: level.FilterAll(level.Info), Sink: sink},
	)

	err := dispatcher.Schedule(t.Context(), "not a schedule")
	require.ErrorIs(t, err, forward.ErrInvalidSchedule)

	require.NoError(t, dispatcher.Schedule(t.Context(), "@every 1s"))
	require.ErrorIs(t, dispatcher.Schedule(t.Context(), "@every 1s"), forward.ErrAlreadyScheduled)

	assert.Eventually(t, func() bool { return sink.Flushes() > 0 }, 5*time.Second, 50*time.Millisecond)
	require.NoError(t, dispatcher.Close(t.Context()))
	assert.True(t, sink.Closed())
}

func TestDispatcherAsSink(t *testing.T) {
	t.Parallel()

	inner := fake.NewFakeSink(t)
	nested := forward.NewDispatcher(logger.NewLogger(new(bytes.Buffer)),
		forward.Route{Name: "inner", Filter: level.FilterAll(level.Warn), Sink: inner},
	)
	outer := forward.NewDispatcher(logger.NewLogger(new(bytes.Buffer)),
		forward.Route{Name: "nested", Filter: level.FilterAll(level.Trace), Sink: nested},
		forward.Route{Name: "func", Filter: level.FilterAll(level.Trace), Sink: forward.SinkFunc(func(context.Context, *runtime.Record) error {
			return nil
		})},
	)

	core := runtime.NewCore()
	outer.Install(t.Context(), core)
	kvlog.Info(core, "dropped by inner")
	kvlog.Warn(core, "kept")

	assert.Equal(t, []string{"WARN #0 kept"}, inner.Lines())
	require.NoError(t, outer.Flush(t.Context()))
	assert.Equal(t, 1, inner.Flushes())
}
