// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/go-logr/logr/funcr"
	"github.com/hashicorp/go-hclog"
	"go.uber.org/zap/zapcore"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/forward/azuresink"
	"github.com/mia-platform/actorlog/internal/forward/collectorsink"
	"github.com/mia-platform/actorlog/internal/forward/hclogsink"
	"github.com/mia-platform/actorlog/internal/forward/logrsink"
	"github.com/mia-platform/actorlog/internal/forward/otelsink"
	"github.com/mia-platform/actorlog/internal/forward/pubsubsink"
	"github.com/mia-platform/actorlog/internal/forward/slogsink"
	"github.com/mia-platform/actorlog/internal/forward/sqlitesink"
	"github.com/mia-platform/actorlog/internal/forward/writer"
	"github.com/mia-platform/actorlog/internal/forward/zapsink"
	"github.com/mia-platform/actorlog/internal/info"
	"github.com/mia-platform/actorlog/internal/logger"
)

// ErrBuildingSink is returned when a configured sink cannot be created.
var ErrBuildingSink = errors.New("cannot build sink")

// Streams are the writers used for the stdout and stderr outputs.
type Streams struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Build creates every configured sink and returns a dispatcher routing to them.
// When a flush schedule is configured it is started on the returned dispatcher.
// On error the sinks created so far are closed.
func Build(ctx context.Context, cfg *Config, log logger.Logger, streams Streams) (*forward.Dispatcher, error) {
	routes := make([]forward.Route, 0, len(cfg.Sinks))
	for _, sinkConfig := range cfg.Sinks {
		sink, err := buildSink(ctx, sinkConfig, streams)
		if err != nil {
			closeRoutes(ctx, routes)
			return nil, fmt.Errorf("%w %q: %w", ErrBuildingSink, sinkConfig.Name, err)
		}

		log.Debug("sink created", "name", sinkConfig.Name, "type", sinkConfig.Type, "levels", sinkConfig.Levels.String())
		routes = append(routes, forward.Route{
			Name:   sinkConfig.Name,
			Filter: sinkConfig.Levels,
			Sink:   sink,
		})
	}

	dispatcher := forward.NewDispatcher(log, routes...)
	if cfg.FlushSchedule != "" {
		if err := dispatcher.Schedule(ctx, cfg.FlushSchedule); err != nil {
			_ = dispatcher.Close(ctx)
			return nil, err
		}
	}

	return dispatcher, nil
}

func closeRoutes(ctx context.Context, routes []forward.Route) {
	for _, route := range routes {
		if closer, ok := route.Sink.(forward.Closer); ok {
			_ = closer.Close(ctx)
		}
	}
}

func buildSink(ctx context.Context, cfg SinkConfig, streams Streams) (forward.Sink, error) {
	switch cfg.Type {
	case SinkTypeOtel:
		serviceName := cfg.ServiceName
		if serviceName == "" {
			serviceName = info.AppName
		}
		return otelsink.NewExporting(ctx, cfg.Endpoint, serviceName)
	case SinkTypePubSub:
		pubsubConfig, err := pubsubsink.ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		return pubsubsink.New(ctx, pubsubConfig)
	case SinkTypeEventHub:
		azureConfig, err := azuresink.ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		return azuresink.NewEventHubSink(azureConfig)
	case SinkTypeBlob:
		azureConfig, err := azuresink.ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		return azuresink.NewBlobSink(azureConfig)
	case SinkTypeSQLite:
		return sqlitesink.Open(ctx, cfg.Path)
	case SinkTypeCollector:
		collectorConfig, err := collectorsink.ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		return collectorsink.New(ctx, collectorConfig)
	}

	out, closer, err := openOutput(cfg.Output, streams)
	if err != nil {
		return nil, err
	}

	sink, err := buildOutputSink(cfg, out)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}

	if closer == nil {
		return sink, nil
	}
	return &fileSink{Sink: sink, file: closer}, nil
}

func buildOutputSink(cfg SinkConfig, out io.Writer) (forward.Sink, error) {
	switch cfg.Type {
	case SinkTypeWriter:
		format := writer.FormatText
		if cfg.Format != "" {
			var err error
			if format, err = writer.ParseFormat(cfg.Format); err != nil {
				return nil, err
			}
		}
		return writer.NewSink(out, format), nil
	case SinkTypeHclog:
		return hclogsink.New(hclog.New(&hclog.LoggerOptions{
			Name:       info.AppName,
			Level:      hclog.Trace,
			Output:     out,
			JSONFormat: cfg.Format != FormatText,
		})), nil
	case SinkTypeZap:
		return zapsink.New(zapsink.NewLogger(zapcore.AddSync(out), zapcore.DebugLevel)), nil
	case SinkTypeSlog:
		options := &slog.HandlerOptions{Level: slogsink.LevelTrace}
		if cfg.Format == FormatText {
			return slogsink.New(slog.NewTextHandler(out, options)), nil
		}
		return slogsink.New(slog.NewJSONHandler(out, options)), nil
	case SinkTypeLogr:
		lines := &lineWriter{w: out}
		return logrsink.New(funcr.NewJSON(lines.writeLine, funcr.Options{
			Verbosity: logrsink.TraceVerbosity,
		})), nil
	default:
		return nil, fmt.Errorf("%w: unknown sink type %q", ErrInvalidConfig, cfg.Type)
	}
}

// openOutput resolves output to a writer. The returned closer is nil for the
// process streams.
func openOutput(output string, streams Streams) (io.Writer, io.Closer, error) {
	switch output {
	case "", OutputStdout:
		return streams.Stdout, nil, nil
	case OutputStderr:
		return streams.Stderr, nil, nil
	}

	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return file, file, nil
}

// fileSink closes the output file after the wrapped sink.
type fileSink struct {
	forward.Sink
	file io.Closer
}

func (s *fileSink) Flush(ctx context.Context) error {
	if flusher, ok := s.Sink.(forward.Flusher); ok {
		return flusher.Flush(ctx)
	}
	return nil
}

func (s *fileSink) Close(ctx context.Context) error {
	var err error
	if closer, ok := s.Sink.(forward.Closer); ok {
		err = closer.Close(ctx)
	}
	return errors.Join(err, s.file.Close())
}

// lineWriter serializes the lines produced by funcr.
type lineWriter struct {
	lock sync.Mutex
	w    io.Writer
}

func (l *lineWriter) writeLine(obj string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintln(l.w, obj)
}
