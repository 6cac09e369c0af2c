// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"sync"
	"testing"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/runtime"
)

var (
	_ forward.Sink    = &FakeSink{}
	_ forward.Flusher = &FakeSink{}
	_ forward.Closer  = &FakeSink{}
)

// FakeSink stores the text rendering of every record it receives.
type FakeSink struct {
	tb testing.TB

	lock    sync.Mutex
	lines   []string
	flushes int
	closed  bool

	// Err is returned by every call when set.
	Err error
}

func NewFakeSink(tb testing.TB) *FakeSink {
	tb.Helper()
	return &FakeSink{tb: tb}
}

func (f *FakeSink) Forward(_ context.Context, record *runtime.Record) error {
	f.tb.Helper()
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.Err != nil {
		return f.Err
	}
	f.lines = append(f.lines, forward.EncodeText(record))
	return nil
}

func (f *FakeSink) Flush(context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.flushes++
	return f.Err
}

func (f *FakeSink) Close(context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.closed = true
	return f.Err
}

// Lines returns the records received so far.
func (f *FakeSink) Lines() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.lines...)
}

// Flushes returns how many times Flush was called.
func (f *FakeSink) Flushes() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.flushes
}

// Closed reports whether Close was called.
func (f *FakeSink) Closed() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.closed
}
