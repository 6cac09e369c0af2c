// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package writer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/runtime"
)

// Format selects how records are rendered.
type Format string

const (
	// FormatText renders records with forward.EncodeText.
	FormatText Format = "text"
	// FormatJSON renders records with forward.EncodeJSON.
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned for formats other than text and json.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat validates a format name; the empty name selects text.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(name)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

var _ forward.Sink = &writerSink{}

type writerSink struct {
	writer io.Writer
	format Format

	lock sync.Mutex
}

// NewSink returns a sink writing to w in the given format.
func NewSink(w io.Writer, format Format) forward.Sink {
	return &writerSink{
		writer: w,
		format: format,
	}
}

func (s *writerSink) Forward(_ context.Context, record *runtime.Record) error {
	builder := new(strings.Builder)
	switch s.format {
	case FormatJSON:
		builder.Write(forward.EncodeJSON(record))
	default:
		builder.WriteString(forward.EncodeText(record))
	}
	builder.WriteString("\n")

	s.lock.Lock()
	defer s.lock.Unlock()
	_, err := io.WriteString(s.writer, builder.String())
	return err
}
