// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package kv

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// Collect replays scan and returns the top level pairs in order. Nested maps are
// materialized as map[string]any, arrays as []any, formatted values as strings and
// nulls as nil.
func Collect(scan Scan) []Field {
	if scan == nil {
		return nil
	}

	c := &collector{}
	scan(c)
	return c.fields
}

// CollectMap is like Collect but returns a single map; later duplicates win.
func CollectMap(scan Scan) map[string]any {
	fields := Collect(scan)
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}

// container is an open map or array while collecting.
type container struct {
	key   string
	isArr bool
	m     map[string]any
	arr   []any
}

type collector struct {
	fields []Field
	stack  []*container
}

func (c *collector) put(key Key, value any) {
	if len(c.stack) == 0 {
		c.fields = append(c.fields, Field{Key: key.name, Value: value})
		return
	}

	top := c.stack[len(c.stack)-1]
	if top.isArr {
		top.arr = append(top.arr, value)
		return
	}
	top.m[key.name] = value
}

func (c *collector) U64(key Key, val uint64)       { c.put(key, val) }
func (c *collector) I64(key Key, val int64)        { c.put(key, val) }
func (c *collector) F64(key Key, val float64)      { c.put(key, val) }
func (c *collector) Bool(key Key, val bool)        { c.put(key, val) }
func (c *collector) Null(key Key)                  { c.put(key, nil) }
func (c *collector) Str(key Key, val string)       { c.put(key, val) }
func (c *collector) Fmt(key Key, val fmt.Stringer) { c.put(key, StringOf(val)) }

func (c *collector) Map(key Key) {
	c.stack = append(c.stack, &container{key: key.name, m: map[string]any{}})
}

func (c *collector) Arr(key Key) {
	c.stack = append(c.stack, &container{key: key.name, isArr: true, arr: []any{}})
}

func (c *collector) MapEnd(Key) { c.pop() }
func (c *collector) ArrEnd(Key) { c.pop() }

func (c *collector) pop() {
	if len(c.stack) == 0 {
		return
	}

	top := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]

	var value any = top.m
	if top.isArr {
		value = top.arr
	}
	c.put(Named(top.key), value)
}

// Flatten replays scan into a flat list of scalar pairs. Nested map keys are
// joined with a dot and array members use their index, so {"a":{"b":[1]}}
// becomes "a.b.0"=1.
func Flatten(scan Scan) []Field {
	flat := make([]Field, 0)
	for _, f := range Collect(scan) {
		flat = flattenInto(flat, f.Key, f.Value)
	}
	return flat
}

func flattenInto(flat []Field, prefix string, value any) []Field {
	switch v := value.(type) {
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(v)) {
			flat = flattenInto(flat, joinKey(prefix, k), v[k])
		}
	case []any:
		for i, member := range v {
			flat = flattenInto(flat, joinKey(prefix, strconv.Itoa(i)), member)
		}
	default:
		flat = append(flat, Field{Key: prefix, Value: v})
	}
	return flat
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
