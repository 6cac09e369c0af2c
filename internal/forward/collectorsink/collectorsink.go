// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package collectorsink ships records in JSON batches to the /records endpoint
// of a remote actorlog collector.
package collectorsink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/caarlos0/env/v11"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/info"
	"github.com/mia-platform/actorlog/internal/runtime"
)

var (
	_ forward.Sink    = &Sink{}
	_ forward.Flusher = &Sink{}
	_ forward.Closer  = &Sink{}
)

// CollectorError wraps every error returned by the sink.
type CollectorError struct {
	err error
}

func (e *CollectorError) Error() string {
	return "collector sink: " + e.err.Error()
}

func (e *CollectorError) Unwrap() error {
	return e.err
}

func (e *CollectorError) Is(target error) bool {
	cre, ok := target.(*CollectorError)
	if !ok {
		return false
	}

	return e.err.Error() == cre.err.Error()
}

// Config holds the remote collector coordinates and credentials. A static token
// is sent as is; client id and secret enable the client credentials flow, client
// id and private key the JWT bearer flow.
type Config struct {
	Endpoint     string `env:"ACTORLOG_COLLECTOR_ENDPOINT,notEmpty"`
	Token        string `env:"ACTORLOG_COLLECTOR_TOKEN"`
	TokenURL     string `env:"ACTORLOG_COLLECTOR_TOKEN_URL"`
	ClientID     string `env:"ACTORLOG_COLLECTOR_CLIENT_ID"`
	ClientSecret string `env:"ACTORLOG_COLLECTOR_CLIENT_SECRET"`
	PrivateKey   string `env:"ACTORLOG_COLLECTOR_PRIVATE_KEY"`
	PrivateKeyID string `env:"ACTORLOG_COLLECTOR_PRIVATE_KEY_ID"`
	// BatchSize is the number of buffered records that triggers a send.
	BatchSize int `env:"ACTORLOG_COLLECTOR_BATCH_SIZE" envDefault:"100"`
}

// ConfigFromEnv reads the sink configuration from the environment.
func ConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, handleError(err)
	}
	return cfg, nil
}

// Sink buffers JSON encoded records and posts them as an array on Flush, or as
// soon as the batch size is reached.
type Sink struct {
	config Config
	client *http.Client

	lock    sync.Mutex
	pending [][]byte
}

// New returns a sink posting to cfg.Endpoint.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.Endpoint == "" {
		return nil, handleError(errors.New("missing endpoint"))
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}

	return &Sink{
		config: cfg,
		client: &http.Client{Transport: newTransport(ctx, cfg)},
	}, nil
}

func (s *Sink) Forward(ctx context.Context, record *runtime.Record) error {
	s.lock.Lock()
	s.pending = append(s.pending, forward.EncodeJSON(record))
	if len(s.pending) < s.config.BatchSize {
		s.lock.Unlock()
		return nil
	}
	batch := s.take()
	s.lock.Unlock()

	return s.send(ctx, batch)
}

// Flush posts the buffered records.
func (s *Sink) Flush(ctx context.Context) error {
	s.lock.Lock()
	batch := s.take()
	s.lock.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return s.send(ctx, batch)
}

// Close posts the buffered records and releases idle connections.
func (s *Sink) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.client.CloseIdleConnections()
	return err
}

// take must be called with the lock held.
func (s *Sink) take() [][]byte {
	batch := s.pending
	s.pending = nil
	return batch
}

func (s *Sink) send(ctx context.Context, batch [][]byte) error {
	body := new(bytes.Buffer)
	body.WriteByte('[')
	body.Write(bytes.Join(batch, []byte(",")))
	body.WriteByte(']')

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, body)
	if err != nil {
		return handleError(err)
	}

	request.Header.Set("User-Agent", userAgentString())
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Content-Type", "application/json")
	if s.config.Token != "" {
		request.Header.Set("Authorization", "Bearer "+s.config.Token)
	}

	resp, err := s.client.Do(request)
	if err != nil {
		return handleError(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusForbidden, http.StatusUnauthorized:
		return handleError(errors.New("invalid token or insufficient permissions"))
	default:
		decoder := json.NewDecoder(resp.Body)
		var respBody map[string]any
		if err := decoder.Decode(&respBody); err == nil {
			if message, ok := respBody["message"].(string); ok {
				return handleError(errors.New(message))
			}
		}

		return handleError(errors.New("unexpected error"))
	}
}

// userAgentString returns the User-Agent string to be used in HTTP requests.
func userAgentString() string {
	return info.AppName + "/" + info.Version
}

func handleError(err error) error {
	var parseErr env.AggregateError
	if errors.As(err, &parseErr) {
		err = parseErr.Errors[0]
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return &CollectorError{
		err: err,
	}
}
