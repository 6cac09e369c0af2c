// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mia-platform/actorlog/internal/kv"
	"github.com/mia-platform/actorlog/internal/level"
)

var (
	// ErrActorStopped is returned when sending to an actor that is terminating.
	ErrActorStopped = errors.New("actor is not running")
	// ErrMailboxFull is returned when the actor mailbox cannot accept more messages.
	ErrMailboxFull = errors.New("actor mailbox is full")
)

// Handler processes the messages of an actor, one at a time. Returning an error
// fails the actor.
type Handler interface {
	Handle(cx *Context, msg any) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(cx *Context, msg any) error

// Handle calls f.
func (f HandlerFunc) Handle(cx *Context, msg any) error {
	return f(cx, msg)
}

// State is the lifecycle state of an actor.
type State int32

const (
	// StateIdle means the actor is waiting for messages.
	StateIdle State = iota
	// StateRunning means the actor is processing a message.
	StateRunning
	// StateStopping means the actor has been asked to terminate.
	StateStopping
	// StateStopped means the actor has terminated.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options configures a new actor.
type Options struct {
	// Name is the actor type, used as the message of its Open record.
	Name string
	// Parent is the log id of the actor that spawned this one, or zero.
	Parent LogID
	// MailboxSize is the capacity of the message queue.
	MailboxSize int
}

// DefaultOptions returns the options used when none are customized.
func DefaultOptions() Options {
	return Options{
		MailboxSize: 1000,
	}
}

// Stats is a snapshot of the actor runtime counters.
type Stats struct {
	ID                LogID
	Name              string
	State             State
	MessagesProcessed uint64
	MailboxSize       int
	CreatedAt         time.Time
}

// Actor processes messages sequentially in its own goroutine.
type Actor struct {
	id      LogID
	name    string
	core    *Core
	handler Handler
	mailbox chan any

	// stopLock orders Send against requestStop so no message is accepted
	// after a stop was requested.
	stopLock sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	state     atomic.Int32
	processed atomic.Uint64
	createdAt time.Time

	reasonOnce sync.Once
	reason     error
	failed     bool
}

// Spawn creates an actor, logs its Open record and starts it.
func Spawn(core *Core, opts Options, handler Handler) *Actor {
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = DefaultOptions().MailboxSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Actor{
		id:        core.NewLogID(),
		name:      opts.Name,
		core:      core,
		handler:   handler,
		mailbox:   make(chan any, opts.MailboxSize),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		createdAt: core.now(),
	}
	a.state.Store(int32(StateIdle))

	parent := opts.Parent
	core.Log(a.id, level.Open, "", a.name, func(out kv.Visitor) {
		if parent != 0 {
			out.U64(kv.Named("parent"), uint64(parent))
		}
	})

	core.register(a)
	go a.loop()
	return a
}

// AccessLogID returns the log id of the actor.
func (a *Actor) AccessLogID() LogID {
	return a.id
}

// AccessCore returns the core the actor belongs to.
func (a *Actor) AccessCore() *Core {
	return a.core
}

// Name returns the actor type name.
func (a *Actor) Name() string {
	return a.name
}

// Send queues msg without blocking. It fails once a stop has been requested.
// Messages still queued when the actor stops are discarded.
func (a *Actor) Send(msg any) error {
	a.stopLock.RLock()
	defer a.stopLock.RUnlock()

	if a.ctx.Err() != nil {
		return fmt.Errorf("%w: actor #%d is %s", ErrActorStopped, a.id, State(a.state.Load()))
	}

	select {
	case a.mailbox <- msg:
		return nil
	default:
		return fmt.Errorf("%w: actor #%d", ErrMailboxFull, a.id)
	}
}

// Stop terminates the actor normally and waits for it to finish the message it is
// processing.
func (a *Actor) Stop() {
	a.requestStop(nil)
	<-a.done
}

// Fail terminates the actor with err as its failure reason and waits for it.
func (a *Actor) Fail(err error) {
	a.requestStop(err)
	<-a.done
}

// Done is closed once the actor has terminated and logged its Close record.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

// Stats returns a snapshot of the actor counters.
func (a *Actor) Stats() Stats {
	return Stats{
		ID:                a.id,
		Name:              a.name,
		State:             State(a.state.Load()),
		MessagesProcessed: a.processed.Load(),
		MailboxSize:       len(a.mailbox),
		CreatedAt:         a.createdAt,
	}
}

// requestStop records the termination reason, first caller wins, and signals the
// loop. It never waits so it is safe to call from the actor's own handler.
func (a *Actor) requestStop(err error) {
	a.reasonOnce.Do(func() {
		a.reason = err
		a.failed = err != nil
	})

	a.stopLock.Lock()
	defer a.stopLock.Unlock()
	if a.ctx.Err() == nil {
		a.state.Store(int32(StateStopping))
	}
	a.cancel()
}

func (a *Actor) loop() {
	defer a.terminate()

	cx := &Context{actor: a}
	for {
		select {
		case <-a.ctx.Done():
			return
		case msg := <-a.mailbox:
			if a.ctx.Err() != nil {
				return
			}
			a.state.CompareAndSwap(int32(StateIdle), int32(StateRunning))
			err := a.handler.Handle(cx, msg)
			a.processed.Add(1)
			if err != nil {
				a.requestStop(err)
				continue
			}
			a.state.CompareAndSwap(int32(StateRunning), int32(StateIdle))
		}
	}
}

func (a *Actor) terminate() {
	a.state.Store(int32(StateStopped))
	a.core.unregister(a)

	message := ""
	if a.reason != nil {
		message = a.reason.Error()
	}
	failed := a.failed
	a.core.Log(a.id, level.Close, "", message, func(out kv.Visitor) {
		out.Bool(kv.Named("failed"), failed)
	})

	close(a.done)
}

// Context is handed to a Handler while it processes a message.
type Context struct {
	actor *Actor
}

// AccessLogID returns the log id of the running actor.
func (cx *Context) AccessLogID() LogID {
	return cx.actor.id
}

// AccessCore returns the core the actor belongs to.
func (cx *Context) AccessCore() *Core {
	return cx.actor.core
}

// Self returns the running actor.
func (cx *Context) Self() *Actor {
	return cx.actor
}

// Context returns a context cancelled when the actor starts terminating.
func (cx *Context) Context() context.Context {
	return cx.actor.ctx
}

// Stop terminates the running actor once the current message is handled.
func (cx *Context) Stop() {
	cx.actor.requestStop(nil)
}

// Fail terminates the running actor with err once the current message is handled.
func (cx *Context) Fail(err error) {
	cx.actor.requestStop(err)
}
