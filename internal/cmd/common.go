// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mia-platform/actorlog/internal/config"
	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/logger"
)

const (
	configPathFlagName  = "config"
	configPathFlagShort = "c"
	configPathFlagUsage = "Path to the YAML file describing the sinks."

	configLoggerName = "actorlog:config"
)

var (
	errNoConfigPath = errors.New("no configuration file provided")

	// availableFormats holds the record formats and their description for
	// command completion and help messages.
	availableFormats = map[string]string{
		"text": "one human readable line per record",
		"json": "one JSON object per record",
	}
)

// handleError will do custom print error handling based on the type of error received.
// it will return nil if the command must return 0 exit code, otherwise it will return
// the original error.
func handleError(cmd *cobra.Command, err error) error {
	switch {
	case errors.Is(err, errNoConfigPath):
		cmd.PrintErrln(err)
		_ = cmd.Usage() // do not check error as we cannot do much about it
		return err
	case errors.Is(err, context.Canceled):
		return nil
	default:
		cmd.PrintErrln(err)
		return err
	}
}

// completeFormats provides shell completion for the --format flag.
func completeFormats(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var comps []string
	for name, description := range availableFormats {
		if strings.HasPrefix(name, toComplete) {
			comps = append(comps, cobra.CompletionWithDesc(name, description))
		}
	}

	return comps, cobra.ShellCompDirectiveNoFileComp
}

// loadDispatcher reads the sink configuration at path and builds its dispatcher.
// Outputs named stdout and stderr are bound to the command streams.
func loadDispatcher(ctx context.Context, cmd *cobra.Command, path string) (*forward.Dispatcher, error) {
	cfg, err := config.NewConfigFromPath(path)
	if err != nil {
		return nil, err
	}

	log := logger.Named(ctx, configLoggerName)
	log.Debug("configuration loaded", "path", path, "sinks", len(cfg.Sinks))

	return config.Build(ctx, cfg, log, config.Streams{
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	})
}
