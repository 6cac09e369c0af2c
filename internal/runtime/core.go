// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mia-platform/actorlog/internal/kv"
	"github.com/mia-platform/actorlog/internal/level"
)

// LogID identifies the source of a record. Zero means the record does not belong
// to any actor.
type LogID uint64

// Record is a single log record handed to the logger. It is only valid for the
// duration of the logger call; KV must be replayed before returning if the
// pairs are needed later.
type Record struct {
	ID      LogID
	Level   level.Level
	Target  string
	Message string
	KV      kv.Scan
	Time    time.Time
}

// Logger receives every record allowed by the filter installed with it.
// It may be called concurrently from several actors.
type Logger func(core *Core, record *Record)

// Core owns the logger configuration and the log id sequence.
type Core struct {
	mu     sync.RWMutex
	filter level.Filter
	logger Logger

	lastID atomic.Uint64
	now    func() time.Time

	actorsMu sync.Mutex
	actors   map[LogID]*Actor
}

// NewCore returns a Core with no logger installed, so every record is dropped.
func NewCore() *Core {
	return &Core{
		now:    time.Now,
		actors: make(map[LogID]*Actor),
	}
}

// SetLogger installs logger; it will receive the records whose level passes
// filter. A nil logger disables logging.
func (c *Core) SetLogger(filter level.Filter, logger Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if logger == nil {
		filter = 0
	}
	c.filter = filter
	c.logger = logger
}

// Filter returns the filter currently installed.
func (c *Core) Filter() level.Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter
}

// Enabled reports whether a record of level l would reach the logger.
func (c *Core) Enabled(l level.Level) bool {
	return c.Filter().Allows(l)
}

// Log hands a record to the logger if its level passes the filter. The scan is
// never invoked by the core itself.
func (c *Core) Log(id LogID, l level.Level, target, message string, scan kv.Scan) {
	c.mu.RLock()
	filter, logger := c.filter, c.logger
	c.mu.RUnlock()

	if logger == nil || !filter.Allows(l) {
		return
	}

	if scan == nil {
		scan = kv.Empty
	}

	logger(c, &Record{
		ID:      id,
		Level:   l,
		Target:  target,
		Message: message,
		KV:      scan,
		Time:    c.now(),
	})
}

// NewLogID returns a fresh non-zero log id.
func (c *Core) NewLogID() LogID {
	return LogID(c.lastID.Add(1))
}

// AccessLogID returns zero: records logged against the core itself do not
// belong to any actor.
func (c *Core) AccessLogID() LogID {
	return 0
}

// AccessCore returns c.
func (c *Core) AccessCore() *Core {
	return c
}

// Actors returns the actors that have not terminated yet.
func (c *Core) Actors() []*Actor {
	c.actorsMu.Lock()
	defer c.actorsMu.Unlock()

	actors := make([]*Actor, 0, len(c.actors))
	for _, a := range c.actors {
		actors = append(actors, a)
	}
	return actors
}

func (c *Core) register(a *Actor) {
	c.actorsMu.Lock()
	defer c.actorsMu.Unlock()
	c.actors[a.id] = a
}

func (c *Core) unregister(a *Actor) {
	c.actorsMu.Lock()
	defer c.actorsMu.Unlock()
	delete(c.actors, a.id)
}

// Shutdown stops every live actor and waits for them to terminate or for ctx to
// be done.
func (c *Core) Shutdown(ctx context.Context) error {
	actors := c.Actors()
	for _, a := range actors {
		a.requestStop(nil)
	}

	for _, a := range actors {
		select {
		case <-a.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
