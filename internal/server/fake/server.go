// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"sync"
	"testing"

	"github.com/mia-platform/actorlog/internal/server"
)

var _ server.Collector = &Server{}

// Server is a collector that serves nothing. Start blocks until Stop is called.
type Server struct {
	tb testing.TB

	// StartErr is returned immediately by Start when set.
	StartErr error
	// OnStart runs inside Start before the started channel is closed.
	OnStart func()

	startedChan chan struct{}
	stoppedChan chan struct{}
	stopOnce    sync.Once
}

func NewFakeServer(tb testing.TB) *Server {
	tb.Helper()

	return &Server{
		tb:          tb,
		startedChan: make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

func (s *Server) Start() error {
	s.tb.Helper()
	if s.StartErr != nil {
		return s.StartErr
	}

	if s.OnStart != nil {
		s.OnStart()
	}
	close(s.startedChan)
	<-s.stoppedChan
	return nil
}

func (s *Server) Stop(context.Context) error {
	s.tb.Helper()
	s.stopOnce.Do(func() {
		close(s.stoppedChan)
	})
	return nil
}

// StartedServer is closed once Start is serving.
func (s *Server) StartedServer() <-chan struct{} {
	return s.startedChan
}

// StoppedServer is closed once Stop has been called.
func (s *Server) StoppedServer() <-chan struct{} {
	return s.stoppedChan
}
