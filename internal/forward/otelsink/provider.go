// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package otelsink

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ErrMissingEndpoint is returned when no OTLP endpoint is configured.
var ErrMissingEndpoint = errors.New("missing otlp endpoint")

// Provider is a tracer provider that exports spans over OTLP/HTTP and must be
// shut down to flush them.
type Provider struct {
	*sdktrace.TracerProvider
}

// NewProvider creates a batching tracer provider exporting to endpoint.
func NewProvider(ctx context.Context, endpoint, serviceName string) (*Provider, error) {
	if endpoint == "" {
		return nil, ErrMissingEndpoint
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("creating otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	return &Provider{
		TracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		),
	}, nil
}

// Flush exports the spans ended so far.
func (p *Provider) Flush(ctx context.Context) error {
	return p.ForceFlush(ctx)
}

// Close flushes and stops the exporter.
func (p *Provider) Close(ctx context.Context) error {
	return p.Shutdown(ctx)
}
