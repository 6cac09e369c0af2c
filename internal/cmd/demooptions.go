// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/mia-platform/actorlog/internal/kv"
	"github.com/mia-platform/actorlog/internal/kvlog"
	"github.com/mia-platform/actorlog/internal/logger"
	"github.com/mia-platform/actorlog/internal/runtime"
)

const (
	messagesFlagName  = "messages"
	messagesFlagShort = "n"
	messagesFlagUsage = "Number of ping pong exchanges"
	defaultMessages   = 3

	demoLoggerName = "actorlog:demo"

	pingActorName = "Ping"
	pongActorName = "Pong"
	rallyAuditTag = "RallyFinished"
)

var errInvalidMessages = errors.New("the number of messages must be positive")

// demoFlags holds the flags for the "demo" command.
type demoFlags struct {
	configPath string
	messages   int
}

// addFlags adds the cli flags to the cobra command.
func (f *demoFlags) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, configPathFlagName, configPathFlagShort, "", configPathFlagUsage)
	_ = cmd.MarkFlagFilename(configPathFlagName, "yaml", "yml")
	cmd.Flags().IntVarP(&f.messages, messagesFlagName, messagesFlagShort, defaultMessages, messagesFlagUsage)
}

// toOptions converts the demo flags to demoOptions.
func (f *demoFlags) toOptions(cmd *cobra.Command) *demoOptions {
	return &demoOptions{
		configPath: f.configPath,
		messages:   f.messages,
		cmd:        cmd,
	}
}

// demoOptions holds the options set for the current demo function.
type demoOptions struct {
	configPath string
	messages   int
	cmd        *cobra.Command

	lock sync.Mutex
}

// validate validates the demo options and returns an error if something is wrong.
func (o *demoOptions) validate() error {
	if o.configPath == "" {
		return errNoConfigPath
	}
	if o.messages < 1 {
		return fmt.Errorf("%w: %d", errInvalidMessages, o.messages)
	}
	return nil
}

// ball is the message exchanged by the demo actors.
type ball struct {
	count int
}

// execute plays the rally and drains every sink.
func (o *demoOptions) execute(ctx context.Context) error {
	if !o.lock.TryLock() {
		return nil
	}
	defer o.lock.Unlock()

	log := logger.Named(ctx, demoLoggerName)

	dispatcher, err := loadDispatcher(ctx, o.cmd, o.configPath)
	if err != nil {
		return err
	}

	core := runtime.NewCore()
	dispatcher.Install(context.WithoutCancel(ctx), core)

	ping, _ := spawnRally(core, o.messages)

	select {
	case <-ping.Done():
		log.Debug("rally finished", "messages", o.messages)
	case <-ctx.Done():
		log.Warn("rally interrupted")
	}

	return drain(context.WithoutCancel(ctx), core, dispatcher)
}

// spawnRally starts the Ping and Pong actors and serves the first ball. Ping
// stops itself after the given number of exchanges.
func spawnRally(core *runtime.Core, messages int) (*runtime.Actor, *runtime.Actor) {
	var pong *runtime.Actor

	ping := runtime.Spawn(core, runtime.Options{Name: pingActorName}, runtime.HandlerFunc(func(cx *runtime.Context, msg any) error {
		received, ok := msg.(ball)
		if !ok {
			return fmt.Errorf("unexpected message %T", msg)
		}

		kvlog.Info(cx, "ping", "count", received.count)
		if received.count >= messages {
			kvlog.Audit(cx, rallyAuditTag, "exchanges", received.count, kv.F("peer", uint64(pong.AccessLogID())))
			cx.Stop()
			return nil
		}

		if err := pong.Send(ball{count: received.count + 1}); err != nil {
			kvlog.Warn(cx, "serve failed", "error", err)
			return err
		}
		return nil
	}))

	pong = runtime.Spawn(core, runtime.Options{Name: pongActorName, Parent: ping.AccessLogID()}, runtime.HandlerFunc(func(cx *runtime.Context, msg any) error {
		received, ok := msg.(ball)
		if !ok {
			return fmt.Errorf("unexpected message %T", msg)
		}

		kvlog.Debug(cx, "pong", "count", received.count)
		if err := ping.Send(received); err != nil {
			kvlog.Warn(cx, "return failed", "error", err)
		}
		return nil
	}))

	if err := pong.Send(ball{count: 1}); err != nil {
		kvlog.Error(kvlog.NewLogCx(0, core), "cannot serve the first ball", "error", err)
		ping.Fail(err)
	}

	return ping, pong
}
