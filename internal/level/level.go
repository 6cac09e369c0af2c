// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package level

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownLevel reports a level name that cannot be parsed.
	ErrUnknownLevel = errors.New("unknown log level")
)

//go:generate ${TOOLS_BIN}/stringer -type=Level -linecomment
type Level uint8

const (
	// Trace is the most verbose severity level.
	Trace Level = iota // TRACE
	// Debug is used for information useful while debugging.
	Debug // DEBUG
	// Info is used for general informational records.
	Info // INFO
	// Warn is used for recoverable problems.
	Warn // WARN
	// Error is the most severe level.
	Error // ERROR
	// Off disables every severity level when used in a filter.
	Off // OFF
	// Audit marks records with a fixed tag and no freeform text.
	Audit // AUDIT
	// Open is emitted when an actor starts.
	Open // OPEN
	// Close is emitted when an actor terminates.
	Close // CLOSE
)

// allLevels lists every level in declaration order.
var allLevels = []Level{Trace, Debug, Info, Warn, Error, Off, Audit, Open, Close}

// IsSeverity reports whether l is one of the ordered severity levels.
func (l Level) IsSeverity() bool {
	return l <= Error
}

// ParseLevel converts a level name to its Level, ignoring case.
func ParseLevel(name string) (Level, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for _, l := range allLevels {
		if l.String() == upper {
			return l, nil
		}
	}

	return Info, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
}

// LevelFromString converts a level name to its Level, falling back to Info for
// unknown names.
func LevelFromString(name string) Level {
	l, err := ParseLevel(name)
	if err != nil {
		return Info
	}
	return l
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}

	*l = parsed
	return nil
}
