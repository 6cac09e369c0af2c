// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package forward

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/mia-platform/actorlog/internal/level"
	"github.com/mia-platform/actorlog/internal/logger"
	"github.com/mia-platform/actorlog/internal/runtime"
)

var (
	// ErrInvalidSchedule is returned when the flush schedule cannot be parsed.
	ErrInvalidSchedule = errors.New("invalid flush schedule")
	// ErrAlreadyScheduled is returned when Schedule is called twice.
	ErrAlreadyScheduled = errors.New("flush already scheduled")
)

// Route attaches a sink to a dispatcher.
type Route struct {
	// Name identifies the route in ambient logs.
	Name   string
	Filter level.Filter
	Sink   Sink
}

// Dispatcher fans each record out to the routes whose filter allows its level.
// Sink failures are reported to the ambient logger and never reach the caller.
type Dispatcher struct {
	routes []Route
	log    logger.Logger

	lock      sync.Mutex
	scheduler *cron.Cron
}

// NewDispatcher returns a dispatcher over routes. Routes with an empty filter or
// without a sink are ignored.
func NewDispatcher(log logger.Logger, routes ...Route) *Dispatcher {
	kept := make([]Route, 0, len(routes))
	for _, route := range routes {
		if route.Sink == nil || route.Filter.IsEmpty() {
			continue
		}
		kept = append(kept, route)
	}

	return &Dispatcher{
		routes: kept,
		log:    log.WithName("forward"),
	}
}

// Routes returns the active routes.
func (d *Dispatcher) Routes() []Route {
	return d.routes
}

// Filter is the union of the route filters.
func (d *Dispatcher) Filter() level.Filter {
	var filter level.Filter
	for _, route := range d.routes {
		filter = filter.Union(route.Filter)
	}
	return filter
}

// Forward sends record to every route that accepts it. It always returns nil so
// that a Dispatcher can itself be used as a sink.
func (d *Dispatcher) Forward(ctx context.Context, record *runtime.Record) error {
	for _, route := range d.routes {
		if !route.Filter.Allows(record.Level) {
			continue
		}

		if err := route.Sink.Forward(ctx, record); err != nil {
			d.log.Error("forwarding record failed",
				"sink", route.Name,
				"level", record.Level.String(),
				"logid", uint64(record.ID),
				"error", err.Error(),
			)
		}
	}
	return nil
}

// Logger returns a runtime.Logger forwarding every record with ctx.
func (d *Dispatcher) Logger(ctx context.Context) runtime.Logger {
	return func(_ *runtime.Core, record *runtime.Record) {
		_ = d.Forward(ctx, record)
	}
}

// Install configures core to log through the dispatcher.
func (d *Dispatcher) Install(ctx context.Context, core *runtime.Core) {
	core.SetLogger(d.Filter(), d.Logger(ctx))
}

// Flush flushes every sink that buffers records.
func (d *Dispatcher) Flush(ctx context.Context) error {
	var errs []error
	for _, route := range d.routes {
		flusher, ok := route.Sink.(Flusher)
		if !ok {
			continue
		}

		if err := flusher.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", route.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Schedule flushes the sinks periodically following spec, a standard five field
// cron expression or a descriptor such as "@every 10s".
func (d *Dispatcher) Schedule(ctx context.Context, spec string) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.scheduler != nil {
		return ErrAlreadyScheduled
	}

	cronLogger := cronLogger{log: d.log.WithName("scheduler")}
	scheduler := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
	)

	if _, err := scheduler.AddFunc(spec, func() {
		if err := d.Flush(ctx); err != nil {
			d.log.Error("scheduled flush failed", "error", err.Error())
		}
	}); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, spec, err)
	}

	scheduler.Start()
	d.scheduler = scheduler
	return nil
}

// Close stops the flush schedule, flushes the sinks and closes them.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.lock.Lock()
	scheduler := d.scheduler
	d.scheduler = nil
	d.lock.Unlock()

	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-ctx.Done():
		}
	}

	errs := []error{d.Flush(ctx)}
	for _, route := range d.routes {
		closer, ok := route.Sink.(Closer)
		if !ok {
			continue
		}

		if err := closer.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", route.Name, err))
		}
	}
	return errors.Join(errs...)
}

// cronLogger reports scheduler events through the ambient logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Trace(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err.Error())...)
}
