// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package kvjson

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/mia-platform/actorlog/internal/kv"
)

const hexDigits = "0123456789ABCDEF"

// Pairs formats the pairs produced by a scan as JSON. Prefix and Suffix are written
// around the pairs only when there is at least one pair.
type Pairs struct {
	Scan   kv.Scan
	Prefix string
	Suffix string
}

// New returns Pairs ready to be formatted.
func New(scan kv.Scan, prefix, suffix string) Pairs {
	return Pairs{Scan: scan, Prefix: prefix, Suffix: suffix}
}

// String renders the pairs.
func (p Pairs) String() string {
	builder := new(strings.Builder)
	p.AppendTo(builder)
	return builder.String()
}

// Format implements fmt.Formatter so Pairs can be used with any verb.
func (p Pairs) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, p.String())
}

// WriteTo writes the rendering to w.
func (p Pairs) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, p.String())
	return int64(n), err
}

// AppendTo writes the rendering into builder.
func (p Pairs) AppendTo(builder *strings.Builder) {
	if p.Scan == nil {
		return
	}

	v := &visitor{b: builder, prefix: p.Prefix, empty: true}
	p.Scan(v)
	if !v.empty {
		builder.WriteString(p.Suffix)
	}
}

// Object renders the pairs of scan as a complete JSON object.
func Object(scan kv.Scan) string {
	builder := new(strings.Builder)
	builder.WriteByte('{')
	New(scan, "", "").AppendTo(builder)
	builder.WriteByte('}')
	return builder.String()
}

// WriteString writes val as a JSON string literal.
func WriteString(b *strings.Builder, val string) {
	b.WriteByte('"')
	if strings.IndexFunc(val, needsEscape) < 0 {
		b.WriteString(val)
		b.WriteByte('"')
		return
	}

	for _, ch := range val {
		switch {
		case ch == '"' || ch == '\\':
			b.WriteByte('\\')
			b.WriteRune(ch)
		case ch < ' ':
			b.WriteString(`\u00`)
			b.WriteByte(hexDigits[ch>>4])
			b.WriteByte(hexDigits[ch&0x0F])
		default:
			b.WriteRune(ch)
		}
	}
	b.WriteByte('"')
}

func needsEscape(ch rune) bool {
	return ch < ' ' || ch == '"' || ch == '\\'
}

func formatFloat(val float64) string {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return "null"
	}
	return strconv.FormatFloat(val, 'f', -1, 64)
}

type visitor struct {
	b      *strings.Builder
	prefix string // whatever needs adding before the next item
	empty  bool
}

func (v *visitor) pushKey(key kv.Key) {
	v.b.WriteString(v.prefix)
	v.prefix = ","
	v.empty = false

	if name, ok := key.Name(); ok {
		WriteString(v.b, name)
		v.b.WriteByte(':')
	}
}

func (v *visitor) U64(key kv.Key, val uint64) {
	v.pushKey(key)
	v.b.WriteString(strconv.FormatUint(val, 10))
}

func (v *visitor) I64(key kv.Key, val int64) {
	v.pushKey(key)
	v.b.WriteString(strconv.FormatInt(val, 10))
}

func (v *visitor) F64(key kv.Key, val float64) {
	v.pushKey(key)
	v.b.WriteString(formatFloat(val))
}

func (v *visitor) Bool(key kv.Key, val bool) {
	v.pushKey(key)
	v.b.WriteString(strconv.FormatBool(val))
}

func (v *visitor) Null(key kv.Key) {
	v.pushKey(key)
	v.b.WriteString("null")
}

func (v *visitor) Str(key kv.Key, val string) {
	v.pushKey(key)
	WriteString(v.b, val)
}

func (v *visitor) Fmt(key kv.Key, val fmt.Stringer) {
	v.pushKey(key)
	WriteString(v.b, kv.StringOf(val))
}

func (v *visitor) Map(key kv.Key) {
	v.pushKey(key)
	v.b.WriteByte('{')
	v.prefix = ""
}

func (v *visitor) MapEnd(kv.Key) {
	v.b.WriteByte('}')
	v.prefix = ","
}

func (v *visitor) Arr(key kv.Key) {
	v.pushKey(key)
	v.b.WriteByte('[')
	v.prefix = ""
}

func (v *visitor) ArrEnd(kv.Key) {
	v.b.WriteByte(']')
	v.prefix = ","
}
