// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package kvdisp

import (
	"bytes"
	"fmt"
	"math"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/actorlog/internal/kv"
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

func TestSingleLineValues(t *testing.T) {
	t.Parallel()

	scan := kv.Fields(
		kv.F("a", "TEST"),
		kv.F("b", 1.234),
		kv.F("c", int32(1234)),
		kv.F("d", int16(-1234)),
		kv.F("e", uint64(4321)),
		kv.F("f", []string{"abc", "def"}),
		kv.F("g", kv.Display(net.IPv4(127, 0, 0, 1))),
		kv.F("h", struct{}{}),
		kv.F("i", map[string]string{"a": "cat", "b": "dog"}),
		kv.F("j", "This is a test"),
		kv.F("k", myType{}),
	)

	expected := `{a=TEST b=1.234 c=1234 d=-1234 e=4321 f[abc def] g=127.0.0.1 h i{a=cat b=dog} j="This is a test" k{a=135 b c[]}}`
	assert.Equal(t, expected, New(scan, "{", "}").String())
	assert.Equal(t, expected, fmt.Sprintf("%s", New(scan, "{", "}")))
}

func TestSingleLineEscaping(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		scan     kv.Scan
		expected string
	}{
		"quoted value with escapes": {
			scan:     kv.Fields(kv.F("s", "a\"b\\c\td")),
			expected: `s="a\22b\5Cc\09d"`,
		},
		"reserved characters trigger quoting": {
			scan:     kv.Fields(kv.F("s", "x=y"), kv.F("t", "[z]")),
			expected: `s="x=y" t="[z]"`,
		},
		"non ascii passes unchanged": {
			scan:     kv.Fields(kv.F("città", "perché")),
			expected: `città=perché`,
		},
		"reserved characters in keys": {
			scan:     kv.Fields(kv.F("a b=c", 1)),
			expected: `a\20b\3Dc=1`,
		},
		"empty key": {
			scan:     kv.Fields(kv.F("", true)),
			expected: `\20=true`,
		},
		"empty string value": {
			scan:     kv.Fields(kv.F("s", "")),
			expected: `s=`,
		},
		"floats": {
			scan:     kv.Fields(kv.F("a", 1.0), kv.F("b", 12345.6789), kv.F("c", math.NaN()), kv.F("d", math.Inf(-1))),
			expected: `a=1 b=12345.6789 c=NaN d=-inf`,
		},
		"nested containers": {
			scan:     kv.Fields(kv.F("m", map[string]any{"n": map[string]any{"x": []int{1, 2}}})),
			expected: `m{n{x[1 2]}}`,
		},
		"formatted values are quoted when needed": {
			scan:     kv.Fields(kv.F("v", kv.Debug(struct{ A int }{A: 1}))),
			expected: `v="{A:1}"`,
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, test.expected, New(test.scan, "", "").String())
		})
	}
}

func TestSingleLinePrefixSuffix(t *testing.T) {
	t.Parallel()

	assert.Empty(t, New(kv.Empty, " {", "}").String())
	assert.Empty(t, New(nil, " {", "}").String())
	assert.Equal(t, " {a=1}", New(kv.Fields(kv.F("a", 1)), " {", "}").String())
	assert.Equal(t, " a=1 b", New(kv.Fields(kv.F("a", 1), kv.F("b", nil)), " ", "").String())

	buffer := new(bytes.Buffer)
	n, err := New(kv.Fields(kv.F("a", 1)), "", "").WriteTo(buffer)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "a=1", buffer.String())
}
