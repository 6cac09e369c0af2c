// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package kvlog

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/kv"
	"github.com/mia-platform/actorlog/internal/kvdisp"
	"github.com/mia-platform/actorlog/internal/level"
	"github.com/mia-platform/actorlog/internal/runtime"
)

type myType struct{}

func (myType) Visit(key kv.Key, out kv.Visitor) {
	out.Map(key)
	out.U64(kv.Named("a"), 135)
	out.Null(kv.Named("b"))
	out.Arr(kv.Named("c"))
	out.ArrEnd(kv.Named("c"))
	out.MapEnd(key)
}

type line struct {
	text   string
	target string
}

func captureCore(t *testing.T, filter level.Filter) (*runtime.Core, func() []line) {
	t.Helper()

	var lines []line
	core := runtime.NewCore()
	core.SetLogger(filter, func(_ *runtime.Core, r *runtime.Record) {
		untargeted := *r
		untargeted.Target = ""
		lines = append(lines, line{
			text:   forward.EncodeText(&untargeted),
			target: r.Target,
		})
	})
	return core, func() []line {
		out := lines
		lines = nil
		return out
	}
}

func TestErrorFormatting(t *testing.T) {
	t.Parallel()

	core, lines := captureCore(t, level.FilterAll(level.Trace, level.Audit, level.Open))

	Error(core, "Test",
		"a", "TEST",
		"b", 1.234,
		"c", int32(1234),
		"d", int16(-1234),
		"e", uint64(4321),
		"f", []string{"abc", "def"},
		"g", kv.Display(net.IPv4(127, 0, 0, 1)),
		"h", struct{}{},
		"i", map[string]string{"b": "dog", "a": "cat"},
		"j", "This is a test",
		"k", myType{},
	)

	assert.Equal(t, []line{{
		text: `ERROR #0 Test {a=TEST b=1.234 c=1234 d=-1234 e=4321 f[abc def] g=127.0.0.1 h i{a=cat b=dog} j="This is a test" k{a=135 b c[]}}`,
	}}, lines())
}

func TestLevels(t *testing.T) {
	t.Parallel()

	core, lines := captureCore(t, level.FilterAll(level.Trace, level.Audit))

	Trace(core, "t")
	Debug(core, "d")
	Info(core, "i")
	Warn(core, "w")
	Error(core, "e")
	Audit(core, "UserLogin", "user", "alice")

	assert.Equal(t, []line{
		{text: "TRACE #0 t"},
		{text: "DEBUG #0 d"},
		{text: "INFO #0 i"},
		{text: "WARN #0 w"},
		{text: "ERROR #0 e"},
		{text: "AUDIT #0 UserLogin {user=alice}"},
	}, lines())
}

type denied struct{ user string }

func (d *denied) Error() string { return "denied " + d.user }

type address struct{ host string }

func (a *address) String() string { return a.host }

func TestNilPointerValues(t *testing.T) {
	t.Parallel()

	core, lines := captureCore(t, level.FilterAll(level.Trace))

	var err *denied
	var peer *address
	var wrapped error = err
	require.NotPanics(t, func() {
		Error(core, "failed", "err", err, "wrapped", wrapped)
		Info(core, "connected", "peer", peer, "other", &address{host: "10.0.0.2"})
	})

	assert.Equal(t, []line{
		{text: "ERROR #0 failed {err wrapped}"},
		{text: "INFO #0 connected {peer other=10.0.0.2}"},
	}, lines())
}

func TestFilteredCallsAreNotConverted(t *testing.T) {
	t.Parallel()

	core, lines := captureCore(t, level.FilterAll(level.Warn))

	converted := false
	lazy := kv.Display(stringerFunc(func() string {
		converted = true
		return "x"
	}))
	Debug(core, "hidden", "lazy", lazy)
	Audit(core, "Hidden", "lazy", lazy)

	assert.False(t, converted)
	assert.Empty(t, lines())
}

type stringerFunc func() string

func (f stringerFunc) String() string { return f() }

func TestSources(t *testing.T) {
	t.Parallel()

	core, lines := captureCore(t, level.FilterAll(level.Info, level.Open))

	actor := runtime.Spawn(core, runtime.Options{Name: "Worker"}, runtime.HandlerFunc(func(cx *runtime.Context, msg any) error {
		Info(WithTarget(cx, "work"), "handled", "msg", msg)
		return nil
	}))
	require.NoError(t, actor.Send("job"))
	actor.Stop()

	id := actor.AccessLogID()
	Warn(NewLogCx(id, core), "from logcx")
	Warn(On(actor, core), "from pair")
	Info(WithTarget(WithTarget(core, "first"), "second"), "retargeted")
	Info(NewLogCx(3, nil), "no core")

	assert.Equal(t, []line{
		{text: fmt.Sprintf("OPEN #%d Worker", id)},
		{text: fmt.Sprintf("INFO #%d handled {msg=job}", id), target: "work"},
		{text: fmt.Sprintf("CLOSE #%d {failed=false}", id)},
		{text: fmt.Sprintf("WARN #%d from logcx", id)},
		{text: fmt.Sprintf("WARN #%d from pair", id)},
		{text: "INFO #0 retargeted", target: "second"},
	}, lines())
}

func TestArgs(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		args     []any
		expected string
	}{
		"no arguments": {
			expected: "",
		},
		"pairs": {
			args:     []any{"a", 1, "b", true},
			expected: "a=1 b=true",
		},
		"standalone fields": {
			args:     []any{kv.F("a", 1), "b", 2, kv.F("c", "x y")},
			expected: `a=1 b=2 c="x y"`,
		},
		"dangling key": {
			args:     []any{"a", 1, "flag"},
			expected: "a=1 flag",
		},
		"bad key": {
			args:     []any{42, "a", "b"},
			expected: "!BADKEY=42 a=b",
		},
		"debug formatting": {
			args:     []any{"p", kv.Debug(struct{ X int }{X: 1})},
			expected: `p="{X:1}"`,
		},
		"time duration": {
			args:     []any{"elapsed", time.Duration(1500) * time.Millisecond},
			expected: "elapsed=1.5s",
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, test.expected, kvdisp.New(Args(test.args...), "", "").String())
		})
	}
}
