// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package runtime

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/actorlog/internal/kv"
	"github.com/mia-platform/actorlog/internal/level"
)

type logged struct {
	ID      LogID
	Level   level.Level
	Target  string
	Message string
	Fields  []kv.Field
}

type recorder struct {
	mu      sync.Mutex
	records []logged
}

func (r *recorder) logger(_ *Core, rec *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, logged{
		ID:      rec.ID,
		Level:   rec.Level,
		Target:  rec.Target,
		Message: rec.Message,
		Fields:  kv.Collect(rec.KV),
	})
}

func (r *recorder) all() []logged {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]logged(nil), r.records...)
}

func newTestCore(t *testing.T, filter level.Filter) (*Core, *recorder) {
	t.Helper()

	rec := &recorder{}
	core := NewCore()
	core.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	core.SetLogger(filter, rec.logger)
	return core, rec
}

func TestCoreLog(t *testing.T) {
	t.Parallel()

	core, rec := newTestCore(t, level.FilterAll(level.Warn, level.Audit))

	scanned := false
	core.Log(0, level.Info, "", "dropped", func(kv.Visitor) { scanned = true })
	core.Log(7, level.Error, "net", "kept", kv.Fields(kv.F("a", 1)))
	core.Log(0, level.Audit, "", "audit", nil)
	core.Log(0, level.Open, "", "dropped", nil)

	assert.False(t, scanned)
	assert.True(t, core.Enabled(level.Warn))
	assert.False(t, core.Enabled(level.Debug))
	assert.Equal(t, []logged{
		{ID: 7, Level: level.Error, Target: "net", Message: "kept", Fields: []kv.Field{kv.F("a", int64(1))}},
		{ID: 0, Level: level.Audit, Message: "audit"},
	}, rec.all())
}

func TestCoreWithoutLogger(t *testing.T) {
	t.Parallel()

	core := NewCore()
	assert.True(t, core.Filter().IsEmpty())
	assert.NotPanics(t, func() { core.Log(0, level.Error, "", "nobody listens", nil) })

	core.SetLogger(level.FilterAll(level.Trace), nil)
	assert.True(t, core.Filter().IsEmpty())
}

func TestNewLogID(t *testing.T) {
	t.Parallel()

	core := NewCore()
	assert.Equal(t, LogID(0), core.AccessLogID())
	assert.Same(t, core, core.AccessCore())
	assert.Equal(t, LogID(1), core.NewLogID())
	assert.Equal(t, LogID(2), core.NewLogID())
}

func TestActorLifecycle(t *testing.T) {
	t.Parallel()

	core, rec := newTestCore(t, level.FilterAll(level.Trace, level.Open))

	parent := Spawn(core, Options{Name: "Parent"}, HandlerFunc(func(*Context, any) error { return nil }))
	received := make(chan any, 1)
	child := Spawn(core, Options{Name: "Child", Parent: parent.AccessLogID(), MailboxSize: 4}, HandlerFunc(func(cx *Context, msg any) error {
		assert.Equal(t, cx.Self().AccessLogID(), cx.AccessLogID())
		assert.Same(t, core, cx.AccessCore())
		received <- msg
		return nil
	}))

	require.NoError(t, child.Send("hello"))
	select {
	case msg := <-received:
		assert.Equal(t, "hello", msg)
	case <-time.After(time.Second):
		require.FailNow(t, "message not delivered")
	}

	child.Stop()
	parent.Stop()
	assert.ErrorIs(t, child.Send("late"), ErrActorStopped)
	assert.Equal(t, StateStopped, child.Stats().State)
	assert.Equal(t, uint64(1), child.Stats().MessagesProcessed)
	assert.Empty(t, core.Actors())

	assert.Equal(t, []logged{
		{ID: 1, Level: level.Open, Message: "Parent"},
		{ID: 2, Level: level.Open, Message: "Child", Fields: []kv.Field{kv.F("parent", uint64(1))}},
		{ID: 2, Level: level.Close, Message: "", Fields: []kv.Field{kv.F("failed", false)}},
		{ID: 1, Level: level.Close, Message: "", Fields: []kv.Field{kv.F("failed", false)}},
	}, rec.all())
}

func TestActorFailure(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		handler Handler
		stop    func(a *Actor)
		message string
		failed  bool
	}{
		"handler error fails the actor": {
			handler: HandlerFunc(func(*Context, any) error { return errors.New("boom") }),
			stop:    func(a *Actor) { <-a.Done() },
			message: "boom",
			failed:  true,
		},
		"handler stops itself": {
			handler: HandlerFunc(func(cx *Context, _ any) error { cx.Stop(); return nil }),
			stop:    func(a *Actor) { <-a.Done() },
		},
		"handler fails itself": {
			handler: HandlerFunc(func(cx *Context, _ any) error { cx.Fail(errors.New("bad state")); return nil }),
			stop:    func(a *Actor) { <-a.Done() },
			message: "bad state",
			failed:  true,
		},
		"external failure": {
			handler: HandlerFunc(func(*Context, any) error { return nil }),
			stop:    func(a *Actor) { a.Fail(errors.New("killed")) },
			message: "killed",
			failed:  true,
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			core, rec := newTestCore(t, level.FilterAll(level.Open))
			actor := Spawn(core, Options{Name: "Worker"}, test.handler)
			require.NoError(t, actor.Send(struct{}{}))
			test.stop(actor)

			records := rec.all()
			require.Len(t, records, 2)
			assert.Equal(t, logged{
				ID:      actor.AccessLogID(),
				Level:   level.Close,
				Message: test.message,
				Fields:  []kv.Field{kv.F("failed", test.failed)},
			}, records[1])
		})
	}
}

func TestActorMailboxFull(t *testing.T) {
	t.Parallel()

	core := NewCore()
	release := make(chan struct{})
	started := make(chan struct{}, 3)
	actor := Spawn(core, Options{Name: "Slow", MailboxSize: 1}, HandlerFunc(func(*Context, any) error {
		started <- struct{}{}
		<-release
		return nil
	}))

	require.NoError(t, actor.Send(1))
	<-started
	require.NoError(t, actor.Send(2))
	assert.ErrorIs(t, actor.Send(3), ErrMailboxFull)

	close(release)
	actor.Stop()
}

func TestCoreShutdown(t *testing.T) {
	t.Parallel()

	core, rec := newTestCore(t, level.FilterAll(level.Open))
	for range 3 {
		Spawn(core, DefaultOptions(), HandlerFunc(func(*Context, any) error { return nil }))
	}

	require.NoError(t, core.Shutdown(t.Context()))
	assert.Empty(t, core.Actors())
	assert.Len(t, rec.all(), 6)
}
