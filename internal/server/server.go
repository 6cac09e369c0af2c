// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/mia-platform/actorlog/internal/info"
	"github.com/mia-platform/actorlog/internal/logger"
	"github.com/mia-platform/actorlog/internal/runtime"
)

const (
	loggerName = "actorlog:server"

	statusPrefix = "/-/"
	healthzPath  = "/-/healthz"
	readyPath    = "/-/ready"
	recordsPath  = "/records"
)

var (
	ErrServerListen   = errors.New("server listen error")
	ErrServerShutdown = errors.New("server shutdown error")
)

// Collector is the lifecycle of a record collector.
type Collector interface {
	// Start serves requests and blocks until the collector stops.
	Start() error
	// Stop gracefully shuts the collector down.
	Stop(ctx context.Context) error
}

var _ Collector = &Server{}

// Server is the HTTP collector.
type Server struct {
	Config

	app  *fiber.App
	core *runtime.Core
}

// NewServer loads the environment configuration and builds a collector that
// logs the received records into core.
func NewServer(ctx context.Context, core *runtime.Core) (*Server, error) {
	cfg, err := LoadServerConfig()
	if err != nil {
		return nil, err
	}

	return newServer(ctx, *cfg, core), nil
}

func newServer(ctx context.Context, cfg Config, core *runtime.Core) *Server {
	app := fiber.New(fiber.Config{
		AppName:               info.AppName,
		DisableStartupMessage: cfg.DisableStartupMessage,
		BodyLimit:             cfg.BodyLimit,
	})

	log := logger.Named(ctx, loggerName)
	app.Use(logger.RequestMiddlewareLogger(log, []string{statusPrefix}))

	srv := &Server{
		Config: cfg,
		app:    app,
		core:   core,
	}
	srv.statusRoutes()
	app.Post(recordsPath, srv.postRecords)

	return srv
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) statusRoutes() {
	s.app.Get(healthzPath, func(c *fiber.Ctx) error {
		return c.JSON(statusResponse{
			Status:  "OK",
			Name:    info.AppName,
			Version: info.Version,
		})
	})

	s.app.Get(readyPath, func(c *fiber.Ctx) error {
		if s.core.Filter().IsEmpty() {
			return c.Status(http.StatusServiceUnavailable).JSON(statusResponse{
				Status:  "KO",
				Name:    info.AppName,
				Version: info.Version,
			})
		}
		return c.JSON(statusResponse{
			Status:  "OK",
			Name:    info.AppName,
			Version: info.Version,
		})
	})
}

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	if err := s.app.Listen(net.JoinHostPort(s.HTTPHost, strconv.Itoa(s.HTTPPort))); err != nil {
		return fmt.Errorf("%w: %w", ErrServerListen, err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrServerShutdown, err)
	}
	return nil
}

// StartAsync runs Start in a goroutine; listen errors are logged.
func (s *Server) StartAsync(ctx context.Context) {
	log := logger.Named(ctx, loggerName)
	go func() {
		if err := s.Start(); err != nil {
			log.Error(err.Error())
		}
	}()
}
