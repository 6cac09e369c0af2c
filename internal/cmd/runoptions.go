// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/logger"
	"github.com/mia-platform/actorlog/internal/runtime"
	"github.com/mia-platform/actorlog/internal/server"
)

const (
	runLoggerName = "actorlog:run"

	shutdownTimeout = 10 * time.Second
)

// newCollector creates the HTTP collector. It can be overridden for testing purposes.
var newCollector = func(ctx context.Context, core *runtime.Core) (server.Collector, error) {
	return server.NewServer(ctx, core)
}

// runFlags holds the flags for the "run" command.
type runFlags struct {
	configPath string
}

// addFlags adds the cli flags to the cobra command.
func (f *runFlags) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, configPathFlagName, configPathFlagShort, "", configPathFlagUsage)
	_ = cmd.MarkFlagFilename(configPathFlagName, "yaml", "yml")
}

// toOptions converts the run flags to runOptions.
func (f *runFlags) toOptions(cmd *cobra.Command) *runOptions {
	return &runOptions{
		configPath:   f.configPath,
		cmd:          cmd,
		newCollector: newCollector,
	}
}

// runOptions holds the options set for the current run function.
type runOptions struct {
	configPath   string
	cmd          *cobra.Command
	newCollector func(context.Context, *runtime.Core) (server.Collector, error)

	lock sync.Mutex
}

// validate validates the run options and returns an error if something is wrong.
func (o *runOptions) validate() error {
	if o.configPath == "" {
		return errNoConfigPath
	}
	return nil
}

// execute serves the collector until ctx is cancelled or a termination signal
// is received, then drains every sink.
func (o *runOptions) execute(ctx context.Context) error {
	if !o.lock.TryLock() {
		return nil
	}
	defer o.lock.Unlock()

	log := logger.Named(ctx, runLoggerName)

	dispatcher, err := loadDispatcher(ctx, o.cmd, o.configPath)
	if err != nil {
		return err
	}

	core := runtime.NewCore()
	dispatcher.Install(context.WithoutCancel(ctx), core)

	collector, err := o.newCollector(ctx, core)
	if err != nil {
		return errors.Join(err, dispatcher.Close(ctx))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- collector.Start()
	}()
	log.Info("collector started", "sinks", len(dispatcher.Routes()))

	var runErr error
	running := true
	select {
	case <-ctx.Done():
	case runErr = <-errChan:
		running = false
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if running {
		log.Info("stopping collector")
		runErr = errors.Join(collector.Stop(shutdownCtx), <-errChan)
	}

	return errors.Join(runErr, drain(shutdownCtx, core, dispatcher))
}

// drain stops the actors of core and flushes and closes the dispatcher sinks.
func drain(ctx context.Context, core *runtime.Core, dispatcher *forward.Dispatcher) error {
	return errors.Join(core.Shutdown(ctx), dispatcher.Close(ctx))
}
