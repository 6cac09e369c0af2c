// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package forward

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mia-platform/actorlog/internal/kvdisp"
	"github.com/mia-platform/actorlog/internal/kvjson"
	"github.com/mia-platform/actorlog/internal/level"
	"github.com/mia-platform/actorlog/internal/runtime"
)

// ErrInvalidRecord is returned when a JSON record cannot be decoded.
var ErrInvalidRecord = errors.New("invalid record")

// EncodeText renders record on a single line as "LEVEL #id target: message {kv}".
// Empty parts are left out together with their separator, so the line never
// ends with a space.
func EncodeText(record *runtime.Record) string {
	builder := new(strings.Builder)
	builder.WriteString(record.Level.String())
	builder.WriteString(" #")
	builder.WriteString(strconv.FormatUint(uint64(record.ID), 10))
	if record.Target != "" {
		builder.WriteByte(' ')
		builder.WriteString(record.Target)
		builder.WriteByte(':')
	}
	if record.Message != "" {
		builder.WriteByte(' ')
		builder.WriteString(record.Message)
	}
	builder.WriteString(kvdisp.New(record.KV, " {", "}").String())
	return builder.String()
}

// EncodeJSON renders record as a single JSON object:
//
//	{"time":"...","level":"INFO","id":3,"target":"net","msg":"...","kv":{...}}
//
// time, target and kv are left out when empty.
func EncodeJSON(record *runtime.Record) []byte {
	builder := new(strings.Builder)
	builder.WriteByte('{')
	if !record.Time.IsZero() {
		builder.WriteString(`"time":`)
		kvjson.WriteString(builder, record.Time.UTC().Format(time.RFC3339Nano))
		builder.WriteByte(',')
	}
	builder.WriteString(`"level":`)
	kvjson.WriteString(builder, record.Level.String())
	builder.WriteString(`,"id":`)
	builder.WriteString(strconv.FormatUint(uint64(record.ID), 10))
	if record.Target != "" {
		builder.WriteString(`,"target":`)
		kvjson.WriteString(builder, record.Target)
	}
	builder.WriteString(`,"msg":`)
	kvjson.WriteString(builder, record.Message)
	kvjson.New(record.KV, `,"kv":{`, "}").AppendTo(builder)
	builder.WriteByte('}')
	return []byte(builder.String())
}

type jsonRecord struct {
	Time   *time.Time      `json:"time,omitempty"`
	Level  string          `json:"level"`
	ID     uint64          `json:"id"`
	Target string          `json:"target,omitempty"`
	Msg    string          `json:"msg"`
	KV     json.RawMessage `json:"kv,omitempty"`
}

// DecodeJSON parses a record produced by EncodeJSON.
func DecodeJSON(data []byte) (*runtime.Record, error) {
	var raw jsonRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	l, err := level.ParseLevel(raw.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if l == level.Off {
		return nil, fmt.Errorf("%w: level %s cannot be logged", ErrInvalidRecord, l)
	}

	scan, err := kvjson.Scan(raw.KV)
	if err != nil {
		return nil, fmt.Errorf("%w: kv: %w", ErrInvalidRecord, err)
	}

	record := &runtime.Record{
		ID:      runtime.LogID(raw.ID),
		Level:   l,
		Target:  raw.Target,
		Message: raw.Msg,
		KV:      scan,
	}
	if raw.Time != nil {
		record.Time = *raw.Time
	}
	return record, nil
}

// DecodeJSONBatch parses either a single record or an array of records.
func DecodeJSONBatch(data []byte) ([]*runtime.Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		record, err := DecodeJSON(data)
		if err != nil {
			return nil, err
		}
		return []*runtime.Record{record}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	records := make([]*runtime.Record, 0, len(items))
	for idx, item := range items {
		record, err := DecodeJSON(item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", idx, err)
		}
		records = append(records, record)
	}
	return records, nil
}
