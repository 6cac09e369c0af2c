// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package level

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Filter is the set of levels that a logger wants to receive.
type Filter uint16

// FilterAll builds a Filter from the given levels. A severity level enables itself
// and every more severe level, Open also enables Close, and Off enables nothing.
func FilterAll(levels ...Level) Filter {
	var f Filter
	for _, l := range levels {
		switch {
		case l.IsSeverity():
			for s := l; s <= Error; s++ {
				f |= bit(s)
			}
		case l == Open:
			f |= bit(Open) | bit(Close)
		case l == Off:
		default:
			f |= bit(l)
		}
	}
	return f
}

func bit(l Level) Filter {
	return 1 << l
}

// Allows reports whether records of level l pass the filter.
func (f Filter) Allows(l Level) bool {
	if l == Off || l >= Level(len(_Level_index)-1) {
		return false
	}
	return f&bit(l) != 0
}

// Union returns a filter allowing everything allowed by f or other.
func (f Filter) Union(other Filter) Filter {
	return f | other
}

// IsEmpty reports whether no level passes the filter.
func (f Filter) IsEmpty() bool {
	return f == 0
}

// Levels lists the allowed levels in declaration order.
func (f Filter) Levels() []Level {
	levels := make([]Level, 0, len(allLevels))
	for _, l := range allLevels {
		if f.Allows(l) {
			levels = append(levels, l)
		}
	}
	return levels
}

func (f Filter) String() string {
	levels := f.Levels()
	if len(levels) == 0 {
		return Off.String()
	}

	names := make([]string, 0, len(levels))
	for _, l := range levels {
		names = append(names, l.String())
	}
	return strings.Join(names, ",")
}

// ParseFilter builds a Filter from level names with the same rules as FilterAll.
func ParseFilter(names []string) (Filter, error) {
	levels := make([]Level, 0, len(names))
	for _, name := range names {
		l, err := ParseLevel(name)
		if err != nil {
			return 0, err
		}
		levels = append(levels, l)
	}

	return FilterAll(levels...), nil
}

// UnmarshalYAML decodes either a single level name or a list of names.
func (f *Filter) UnmarshalYAML(value *yaml.Node) error {
	var names []string
	if value.Kind == yaml.ScalarNode {
		names = []string{value.Value}
	} else if err := value.Decode(&names); err != nil {
		return err
	}

	parsed, err := ParseFilter(names)
	if err != nil {
		return err
	}

	*f = parsed
	return nil
}
