// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package kv

import (
	"fmt"
)

// Key names a visited value. Array members are visited without a key.
type Key struct {
	name    string
	present bool
}

// NoKey is the key used for array members.
var NoKey = Key{}

// Named returns a key with the given name. The name may be empty.
func Named(name string) Key {
	return Key{name: name, present: true}
}

// Name returns the key name and whether the key is present at all.
func (k Key) Name() (string, bool) {
	return k.name, k.present
}

// IsPresent reports whether k carries a name.
func (k Key) IsPresent() bool {
	return k.present
}

func (k Key) String() string {
	return k.name
}

// Visitor receives the key/value pairs of a record, one call per value. Maps and
// arrays are bracketed by Map/MapEnd and Arr/ArrEnd calls carrying the same key.
type Visitor interface {
	U64(key Key, val uint64)
	I64(key Key, val int64)
	F64(key Key, val float64)
	Bool(key Key, val bool)
	Null(key Key)
	Str(key Key, val string)
	Fmt(key Key, val fmt.Stringer)
	Map(key Key)
	MapEnd(key Key)
	Arr(key Key)
	ArrEnd(key Key)
}

// Scan replays a set of key/value pairs into a Visitor.
type Scan func(out Visitor)

// Empty is a Scan with no pairs.
func Empty(Visitor) {}

// Visitable is implemented by values that know how to describe themselves to a
// Visitor, for example as a structured map instead of a formatted string.
type Visitable interface {
	Visit(key Key, out Visitor)
}
