// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mia-platform/actorlog/internal/level"
)

// Sink types accepted in the sinks list.
const (
	SinkTypeWriter    = "writer"
	SinkTypeHclog     = "hclog"
	SinkTypeZap       = "zap"
	SinkTypeSlog      = "slog"
	SinkTypeLogr      = "logr"
	SinkTypeOtel      = "otel"
	SinkTypePubSub    = "pubsub"
	SinkTypeEventHub  = "eventhub"
	SinkTypeBlob      = "blob"
	SinkTypeSQLite    = "sqlite"
	SinkTypeCollector = "collector"

	// OutputStdout and OutputStderr select the process streams; any other output
	// value is a file path opened in append mode.
	OutputStdout = "stdout"
	OutputStderr = "stderr"

	FormatText = "text"
	FormatJSON = "json"

	NameField        = "name"
	TypeField        = "type"
	LevelsField      = "levels"
	PathField        = "path"
	EndpointField    = "endpoint"
	FormatField      = "format"
	OutputField      = "output"
	ServiceNameField = "serviceName"
)

var (
	// ErrParsing reports failures that occur while decoding configuration files.
	ErrParsing = errors.New("error parsing")
	// ErrInvalidConfig reports a configuration that decodes but cannot be used.
	ErrInvalidConfig = errors.New("invalid configuration")

	sinkTypes = []string{
		SinkTypeWriter, SinkTypeHclog, SinkTypeZap, SinkTypeSlog, SinkTypeLogr,
		SinkTypeOtel, SinkTypePubSub, SinkTypeEventHub, SinkTypeBlob, SinkTypeSQLite,
		SinkTypeCollector,
	}
	outputSinkTypes = []string{SinkTypeWriter, SinkTypeHclog, SinkTypeZap, SinkTypeSlog, SinkTypeLogr}
	formatSinkTypes = []string{SinkTypeWriter, SinkTypeHclog, SinkTypeSlog}
)

// Config describes where records go.
type Config struct {
	// FlushSchedule is a cron expression for periodic flushes of buffering sinks.
	FlushSchedule string       `json:"flushSchedule,omitempty" yaml:"flushSchedule,omitempty"`
	Sinks         []SinkConfig `json:"sinks" yaml:"sinks"`
}

// SinkConfig is a single entry of the sinks list. Besides name, type and levels
// only the fields relevant to the sink type may be set.
type SinkConfig struct {
	Name   string       `json:"name,omitempty" yaml:"name,omitempty"`
	Type   string       `json:"type" yaml:"type"`
	Levels level.Filter `json:"levels" yaml:"levels"`

	Output      string `json:"output,omitempty" yaml:"output,omitempty"`
	Format      string `json:"format,omitempty" yaml:"format,omitempty"`
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
	Endpoint    string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	ServiceName string `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
}

// NewConfigFromPath parses the file at path. A file may hold several YAML
// documents: their sinks are concatenated and the last flush schedule wins.
func NewConfigFromPath(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg, err := NewConfig(file)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrParsing, path, err)
	}
	return cfg, nil
}

// NewConfig parses the YAML documents read from r.
func NewConfig(r io.Reader) (*Config, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	cfg := new(Config)
	for {
		document := new(Config)
		err := decoder.Decode(&document)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}

		// Skip empty documents.
		if document == nil {
			continue
		}

		if document.FlushSchedule != "" {
			cfg.FlushSchedule = document.FlushSchedule
		}
		cfg.Sinks = append(cfg.Sinks, document.Sinks...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every sink and assigns default names.
func (c *Config) Validate() error {
	if len(c.Sinks) == 0 {
		return fmt.Errorf("%w: no sinks configured", ErrInvalidConfig)
	}

	errorsList := []string{}
	names := make(map[string]bool, len(c.Sinks))
	for idx := range c.Sinks {
		sink := &c.Sinks[idx]
		if sink.Name == "" {
			sink.Name = sink.Type + "-" + strconv.Itoa(idx)
		}
		if names[sink.Name] {
			errorsList = append(errorsList, fmt.Sprintf("sink %q: duplicate name", sink.Name))
		}
		names[sink.Name] = true

		for _, problem := range sink.validate() {
			errorsList = append(errorsList, fmt.Sprintf("sink %q: %s", sink.Name, problem))
		}
	}

	if len(errorsList) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errorsList, "; "))
	}
	return nil
}

func (s SinkConfig) validate() []string {
	errorsList := []string{}

	if !slices.Contains(sinkTypes, s.Type) {
		errorsList = append(errorsList, fmt.Sprintf("unknown value %q for '%s'", s.Type, TypeField))
		return errorsList
	}
	if s.Levels.IsEmpty() {
		errorsList = append(errorsList, fmt.Sprintf("missing field '%s'", LevelsField))
	}

	if s.Output != "" && !slices.Contains(outputSinkTypes, s.Type) {
		errorsList = append(errorsList, fmt.Sprintf("field '%s' is not supported", OutputField))
	}
	if s.Format != "" {
		if !slices.Contains(formatSinkTypes, s.Type) {
			errorsList = append(errorsList, fmt.Sprintf("field '%s' is not supported", FormatField))
		} else if s.Format != FormatText && s.Format != FormatJSON {
			errorsList = append(errorsList, fmt.Sprintf("unknown value %q for '%s'", s.Format, FormatField))
		}
	}

	switch s.Type {
	case SinkTypeSQLite:
		if s.Path == "" {
			errorsList = append(errorsList, fmt.Sprintf("missing field '%s'", PathField))
		}
	case SinkTypeOtel:
		if s.Endpoint == "" {
			errorsList = append(errorsList, fmt.Sprintf("missing field '%s'", EndpointField))
		}
	}
	if s.Path != "" && s.Type != SinkTypeSQLite {
		errorsList = append(errorsList, fmt.Sprintf("field '%s' is not supported", PathField))
	}
	if (s.Endpoint != "" || s.ServiceName != "") && s.Type != SinkTypeOtel {
		errorsList = append(errorsList, fmt.Sprintf("fields '%s' and '%s' are not supported", EndpointField, ServiceNameField))
	}

	return errorsList
}
