// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package pubsubsink publishes records to a Google Cloud Pub/Sub topic, one JSON
// encoded record per message.
package pubsubsink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub/v2"
	"github.com/caarlos0/env/v11"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/logger"
	"github.com/mia-platform/actorlog/internal/runtime"
)

const (
	loggerName = "actorlog:sink:pubsub"

	levelAttribute  = "level"
	logIDAttribute  = "logid"
	targetAttribute = "target"
)

var (
	// ErrMissingEnvVariable reports missing mandatory environment variables.
	ErrMissingEnvVariable = errors.New("missing environment variable")
	// ErrPubSubSink wraps errors emitted by the Pub/Sub sink.
	ErrPubSubSink = errors.New("pubsub sink")
)

// Config holds the Pub/Sub coordinates of the sink.
type Config struct {
	ProjectID string `env:"GOOGLE_CLOUD_PUBSUB_PROJECT"`
	TopicID   string `env:"GOOGLE_CLOUD_PUBSUB_TOPIC"`
}

// ConfigFromEnv reads the sink configuration from the environment.
func ConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, handleError(err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	missingEnvs := make([]string, 0)
	if c.ProjectID == "" {
		missingEnvs = append(missingEnvs, "GOOGLE_CLOUD_PUBSUB_PROJECT")
	}
	if c.TopicID == "" {
		missingEnvs = append(missingEnvs, "GOOGLE_CLOUD_PUBSUB_TOPIC")
	}

	if len(missingEnvs) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, strings.Join(missingEnvs, ", "))
	}
	return nil
}

var (
	_ forward.Sink    = &Sink{}
	_ forward.Flusher = &Sink{}
	_ forward.Closer  = &Sink{}
)

// Sink publishes records asynchronously; Flush waits for the outstanding
// publish results.
type Sink struct {
	config    Config
	client    *pubsub.Client
	publisher *pubsub.Publisher

	lock    sync.Mutex
	pending []*pubsub.PublishResult
}

// New creates the Pub/Sub client and the topic publisher.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Sink, error) {
	if err := cfg.validate(); err != nil {
		return nil, handleError(err)
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, handleError(err)
	}

	return &Sink{
		config:    cfg,
		client:    client,
		publisher: client.Publisher(cfg.TopicID),
	}, nil
}

func (s *Sink) Forward(ctx context.Context, record *runtime.Record) error {
	attributes := map[string]string{
		levelAttribute: record.Level.String(),
		logIDAttribute: fmt.Sprintf("%d", record.ID),
	}
	if record.Target != "" {
		attributes[targetAttribute] = record.Target
	}

	result := s.publisher.Publish(ctx, &pubsub.Message{
		Data:       forward.EncodeJSON(record),
		Attributes: attributes,
	})

	s.lock.Lock()
	defer s.lock.Unlock()
	s.pending = append(s.pending, result)
	return nil
}

// Flush waits for every message published since the last flush.
func (s *Sink) Flush(ctx context.Context) error {
	s.lock.Lock()
	pending := s.pending
	s.pending = nil
	s.lock.Unlock()

	log := logger.Named(ctx, loggerName)
	errorsList := make([]error, 0)
	for _, result := range pending {
		if _, err := result.Get(ctx); err != nil {
			errorsList = append(errorsList, err)
		}
	}

	if len(errorsList) > 0 {
		return handleError(errors.Join(errorsList...))
	}

	log.Trace("flushed pub/sub messages", "topicId", s.config.TopicID, "count", len(pending))
	return nil
}

// Close flushes the outstanding messages and closes the client.
func (s *Sink) Close(ctx context.Context) error {
	log := logger.Named(ctx, loggerName)
	log.Debug("closing GCP pub/sub client")

	errorsList := make([]error, 0)
	if err := s.Flush(ctx); err != nil {
		errorsList = append(errorsList, err)
	}
	s.publisher.Stop()
	if err := s.client.Close(); err != nil {
		errorsList = append(errorsList, handleError(err))
	}

	if len(errorsList) > 0 {
		return errors.Join(errorsList...)
	}

	log.Debug("closed GCP pub/sub client")
	return nil
}

// handleError strips gRPC status details and wraps err with ErrPubSubSink.
func handleError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrPubSubSink) {
		return err
	}

	if statusErr, ok := status.FromError(err); ok {
		err = errors.New(statusErr.Message())
	}

	return fmt.Errorf("%w: %w", ErrPubSubSink, err)
}
