// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package kvdisp renders key/value pairs as a single human readable line.
//
// All type information is lost. Strings are shown without quotes when no
// character needs quoting, reserved ASCII characters are escaped as \XX with two
// upper case hex digits, and anything above ASCII is passed unchanged. Arrays are
// enclosed in [...] and maps in {...}; a null value shows as its bare key.
package kvdisp

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/mia-platform/actorlog/internal/kv"
)

const hexDigits = "0123456789ABCDEF"

// SingleLine formats the pairs produced by a scan. Prefix and Suffix are written
// around the pairs, but only when there is at least one pair.
type SingleLine struct {
	Scan   kv.Scan
	Prefix string
	Suffix string
}

// New returns a SingleLine ready to be formatted.
func New(scan kv.Scan, prefix, suffix string) SingleLine {
	return SingleLine{Scan: scan, Prefix: prefix, Suffix: suffix}
}

// String renders the pairs.
func (s SingleLine) String() string {
	builder := new(strings.Builder)
	s.render(builder)
	return builder.String()
}

// Format implements fmt.Formatter so a SingleLine can be used with any verb.
func (s SingleLine) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, s.String())
}

// WriteTo writes the rendering to w.
func (s SingleLine) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, s.String())
	return int64(n), err
}

func (s SingleLine) render(builder *strings.Builder) {
	if s.Scan == nil {
		return
	}

	v := &visitor{b: builder, prefix: s.Prefix, empty: true}
	s.Scan(v)
	if !v.empty {
		builder.WriteString(s.Suffix)
	}
}

// isReserved reports characters that cannot appear unescaped outside quotes.
func isReserved(ch rune) bool {
	switch ch {
	case '"', '=', '\\', '[', ']', '{', '}':
		return true
	}
	return ch <= ' '
}

func writeHexEscape(b *strings.Builder, ch byte) {
	b.WriteByte('\\')
	b.WriteByte(hexDigits[ch>>4])
	b.WriteByte(hexDigits[ch&0x0F])
}

// writeValue writes val bare, or quoted when it contains a reserved character.
func writeValue(b *strings.Builder, val string) {
	if strings.IndexFunc(val, isReserved) < 0 {
		b.WriteString(val)
		return
	}

	b.WriteByte('"')
	for _, ch := range val {
		if ch < ' ' || ch == '"' || ch == '\\' {
			writeHexEscape(b, byte(ch))
			continue
		}
		b.WriteRune(ch)
	}
	b.WriteByte('"')
}

func formatFloat(val float64) string {
	switch {
	case math.IsNaN(val):
		return "NaN"
	case math.IsInf(val, 1):
		return "inf"
	case math.IsInf(val, -1):
		return "-inf"
	}
	return strconv.FormatFloat(val, 'f', -1, 64)
}

type visitor struct {
	b      *strings.Builder
	prefix string // whatever needs adding before the next item
	empty  bool
}

func (v *visitor) pushKey(key kv.Key, withSep bool) {
	v.b.WriteString(v.prefix)
	v.prefix = " "
	v.empty = false

	name, ok := key.Name()
	if !ok {
		return
	}

	if name == "" {
		v.b.WriteString(`\20`)
	} else {
		for _, ch := range name {
			if isReserved(ch) {
				writeHexEscape(v.b, byte(ch))
				continue
			}
			v.b.WriteRune(ch)
		}
	}

	if withSep {
		v.b.WriteByte('=')
	}
}

func (v *visitor) U64(key kv.Key, val uint64) {
	v.pushKey(key, true)
	v.b.WriteString(strconv.FormatUint(val, 10))
}

func (v *visitor) I64(key kv.Key, val int64) {
	v.pushKey(key, true)
	v.b.WriteString(strconv.FormatInt(val, 10))
}

func (v *visitor) F64(key kv.Key, val float64) {
	v.pushKey(key, true)
	v.b.WriteString(formatFloat(val))
}

func (v *visitor) Bool(key kv.Key, val bool) {
	v.pushKey(key, true)
	v.b.WriteString(strconv.FormatBool(val))
}

func (v *visitor) Null(key kv.Key) {
	v.pushKey(key, false)
}

func (v *visitor) Str(key kv.Key, val string) {
	v.pushKey(key, true)
	writeValue(v.b, val)
}

func (v *visitor) Fmt(key kv.Key, val fmt.Stringer) {
	v.pushKey(key, true)
	writeValue(v.b, kv.StringOf(val))
}

func (v *visitor) Map(key kv.Key) {
	v.pushKey(key, false)
	v.b.WriteByte('{')
	v.prefix = ""
}

func (v *visitor) MapEnd(kv.Key) {
	v.b.WriteByte('}')
	v.prefix = " "
}

func (v *visitor) Arr(key kv.Key) {
	v.pushKey(key, false)
	v.b.WriteByte('[')
	v.prefix = ""
}

func (v *visitor) ArrEnd(kv.Key) {
	v.b.WriteByte(']')
	v.prefix = " "
}
