// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package forward

import (
	"context"

	"github.com/mia-platform/actorlog/internal/runtime"
)

// Sink receives the records routed to it. The record and its key/value scan are
// only valid during the call: sinks that buffer must encode before returning.
type Sink interface {
	Forward(ctx context.Context, record *runtime.Record) error
}

// Flusher is implemented by sinks that buffer records.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Closer is implemented by sinks holding resources.
type Closer interface {
	Close(ctx context.Context) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, record *runtime.Record) error

// Forward calls f.
func (f SinkFunc) Forward(ctx context.Context, record *runtime.Record) error {
	return f(ctx, record)
}
