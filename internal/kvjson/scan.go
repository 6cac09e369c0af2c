// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package kvjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mia-platform/actorlog/internal/kv"
)

var (
	// ErrNotAnObject is returned when the parsed JSON is not an object.
	ErrNotAnObject = errors.New("key/value data must be a JSON object")
	// ErrMalformed reports invalid JSON input.
	ErrMalformed = errors.New("malformed key/value JSON")
)

type eventKind uint8

const (
	eventU64 eventKind = iota
	eventI64
	eventF64
	eventBool
	eventNull
	eventStr
	eventMap
	eventMapEnd
	eventArr
	eventArrEnd
)

// event is one recorded visitor call.
type event struct {
	kind eventKind
	key  kv.Key
	u    uint64
	i    int64
	f    float64
	b    bool
	s    string
}

// Scan parses a JSON object and returns a scan replaying its members in
// document order. Integers become U64 or I64 depending on their sign, other
// numbers become F64. Empty input or a JSON null yields an empty scan.
func Scan(raw []byte) (kv.Scan, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return kv.Empty, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	token, err := decoder.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, ErrNotAnObject
	}

	p := &parser{decoder: decoder}
	if err := p.members(); err != nil {
		return nil, err
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after object", ErrMalformed)
	}

	events := p.events
	return func(out kv.Visitor) {
		replay(events, out)
	}, nil
}

type parser struct {
	decoder *json.Decoder
	events  []event
}

// members reads object members up to and including the closing brace.
func (p *parser) members() error {
	for {
		token, err := p.decoder.Token()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if delim, ok := token.(json.Delim); ok && delim == '}' {
			return nil
		}

		name, ok := token.(string)
		if !ok {
			return fmt.Errorf("%w: expected object key", ErrMalformed)
		}
		if err := p.value(kv.Named(name)); err != nil {
			return err
		}
	}
}

// elements reads array members up to and including the closing bracket.
func (p *parser) elements() error {
	for p.decoder.More() {
		if err := p.value(kv.NoKey); err != nil {
			return err
		}
	}

	if _, err := p.decoder.Token(); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}

func (p *parser) value(key kv.Key) error {
	token, err := p.decoder.Token()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	switch v := token.(type) {
	case json.Delim:
		switch v {
		case '{':
			p.events = append(p.events, event{kind: eventMap, key: key})
			if err := p.members(); err != nil {
				return err
			}
			p.events = append(p.events, event{kind: eventMapEnd, key: key})
		case '[':
			p.events = append(p.events, event{kind: eventArr, key: key})
			if err := p.elements(); err != nil {
				return err
			}
			p.events = append(p.events, event{kind: eventArrEnd, key: key})
		default:
			return fmt.Errorf("%w: unexpected %q", ErrMalformed, v)
		}
	case nil:
		p.events = append(p.events, event{kind: eventNull, key: key})
	case bool:
		p.events = append(p.events, event{kind: eventBool, key: key, b: v})
	case string:
		p.events = append(p.events, event{kind: eventStr, key: key, s: v})
	case json.Number:
		p.events = append(p.events, numberEvent(key, v))
	default:
		return fmt.Errorf("%w: unexpected token %v", ErrMalformed, v)
	}
	return nil
}

func numberEvent(key kv.Key, number json.Number) event {
	text := number.String()
	if !strings.ContainsAny(text, ".eE") {
		if strings.HasPrefix(text, "-") {
			if i, err := strconv.ParseInt(text, 10, 64); err == nil {
				return event{kind: eventI64, key: key, i: i}
			}
		} else if u, err := strconv.ParseUint(text, 10, 64); err == nil {
			return event{kind: eventU64, key: key, u: u}
		}
	}

	f, _ := number.Float64()
	return event{kind: eventF64, key: key, f: f}
}

func replay(events []event, out kv.Visitor) {
	for _, e := range events {
		switch e.kind {
		case eventU64:
			out.U64(e.key, e.u)
		case eventI64:
			out.I64(e.key, e.i)
		case eventF64:
			out.F64(e.key, e.f)
		case eventBool:
			out.Bool(e.key, e.b)
		case eventNull:
			out.Null(e.key)
		case eventStr:
			out.Str(e.key, e.s)
		case eventMap:
			out.Map(e.key)
		case eventMapEnd:
			out.MapEnd(e.key)
		case eventArr:
			out.Arr(e.key)
		case eventArrEnd:
			out.ArrEnd(e.key)
		}
	}
}
