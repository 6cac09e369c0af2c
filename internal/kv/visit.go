// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package kv

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
)

// Field is a value bound to its key.
type Field struct {
	Key   string
	Value any
}

// F binds value to key.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Visit makes Field itself Visitable, ignoring the outer key.
func (f Field) Visit(_ Key, out Visitor) {
	Visit(Named(f.Key), f.Value, out)
}

// Fields turns a list of fields into a Scan.
func Fields(fields ...Field) Scan {
	return func(out Visitor) {
		for _, f := range fields {
			Visit(Named(f.Key), f.Value, out)
		}
	}
}

type display struct{ v any }

func (d display) String() string            { return fmt.Sprintf("%v", d.v) }
func (d display) Visit(key Key, out Visitor) { out.Fmt(key, d) }

type debug struct{ v any }

func (d debug) String() string            { return fmt.Sprintf("%+v", d.v) }
func (d debug) Visit(key Key, out Visitor) { out.Fmt(key, d) }

// Formatted is a value that is always visited as its string formatting.
type Formatted interface {
	fmt.Stringer
	Visitable
}

// Display wraps v so that it is always visited as its "%v" formatting.
func Display(v any) Formatted {
	return display{v: v}
}

// Debug wraps v so that it is always visited as its "%+v" formatting.
func Debug(v any) Formatted {
	return debug{v: v}
}

// Visit converts value into calls on out under key.
func Visit(key Key, value any, out Visitor) {
	switch v := value.(type) {
	case nil:
		out.Null(key)
	case Visitable:
		if isNilPointer(v) {
			out.Null(key)
			return
		}
		v.Visit(key, out)
	case string:
		out.Str(key, v)
	case bool:
		out.Bool(key, v)
	case int:
		out.I64(key, int64(v))
	case int8:
		out.I64(key, int64(v))
	case int16:
		out.I64(key, int64(v))
	case int32:
		out.I64(key, int64(v))
	case int64:
		out.I64(key, v)
	case uint:
		out.U64(key, uint64(v))
	case uint8:
		out.U64(key, uint64(v))
	case uint16:
		out.U64(key, uint64(v))
	case uint32:
		out.U64(key, uint64(v))
	case uint64:
		out.U64(key, v)
	case uintptr:
		out.U64(key, uint64(v))
	case float32:
		out.F64(key, float64(v))
	case float64:
		out.F64(key, v)
	case struct{}:
		out.Null(key)
	case error:
		if isNilPointer(v) {
			out.Null(key)
			return
		}
		out.Str(key, errorString(v))
	case fmt.Stringer:
		if isNilPointer(v) {
			out.Null(key)
			return
		}
		out.Fmt(key, v)
	default:
		visitReflect(key, reflect.ValueOf(value), out)
	}
}

// StringOf returns val.String(). A panic inside the method is rendered as
// <PANIC=reason> instead of being propagated.
func StringOf(val fmt.Stringer) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprintf("<PANIC=%v>", r)
		}
	}()
	return val.String()
}

func errorString(err error) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprintf("<PANIC=%v>", r)
		}
	}()
	return err.Error()
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// visitReflect handles named types, collections and pointers.
func visitReflect(key Key, rv reflect.Value, out Visitor) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		out.I64(key, rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		out.U64(key, rv.Uint())
	case reflect.Float32, reflect.Float64:
		out.F64(key, rv.Float())
	case reflect.Bool:
		out.Bool(key, rv.Bool())
	case reflect.String:
		out.Str(key, rv.String())
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			out.Null(key)
			return
		}
		Visit(key, rv.Elem().Interface(), out)
	case reflect.Slice:
		if rv.IsNil() {
			out.Null(key)
			return
		}
		visitArray(key, rv, out)
	case reflect.Array:
		visitArray(key, rv, out)
	case reflect.Map:
		if rv.IsNil() {
			out.Null(key)
			return
		}
		visitMap(key, rv, out)
	case reflect.Struct:
		if rv.NumField() == 0 {
			out.Null(key)
			return
		}
		out.Fmt(key, debug{v: rv.Interface()})
	default:
		out.Fmt(key, display{v: rv.Interface()})
	}
}

func visitArray(key Key, rv reflect.Value, out Visitor) {
	out.Arr(key)
	for i := range rv.Len() {
		Visit(NoKey, rv.Index(i).Interface(), out)
	}
	out.ArrEnd(key)
}

type mapEntry struct {
	key   string
	value reflect.Value
}

// visitMap emits entries sorted by their formatted key so output is stable.
func visitMap(key Key, rv reflect.Value, out Visitor) {
	entries := make([]mapEntry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		entries = append(entries, mapEntry{key: fmt.Sprint(iter.Key().Interface()), value: iter.Value()})
	}
	slices.SortFunc(entries, func(a, b mapEntry) int {
		return cmp.Compare(a.key, b.key)
	})

	out.Map(key)
	for _, entry := range entries {
		Visit(Named(entry.key), entry.value.Interface(), out)
	}
	out.MapEnd(key)
}
