// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

const (
	runCmdUsage = "run"
	runCmdShort = "start the record collector"
	runCmdLong  = `Start the record collector.
	The collector accepts JSON records over HTTP on the /records path and routes
	them to the sinks described in the configuration file. HTTP_HOST and HTTP_PORT
	select the listening address; cloud sinks read their coordinates from the
	environment, please refer to the documentation for more details.

	The collector stops on SIGINT or SIGTERM, flushing and closing every sink.`

	runCmdExample = `# Run the collector with the sinks described in sinks.yaml
	actorlog run -c sinks.yaml`

	renderCmdUsage = "render [FILE]"
	renderCmdShort = "render JSON records"
	renderCmdLong  = `Render JSON records.
	Every line of FILE, or of the standard input when FILE is missing or "-",
	must contain a JSON record or an array of records. Records are printed
	with the selected format.`

	renderCmdExample = `# Render a record dump as human readable lines
	actorlog render records.jsonl

	# Normalize records read from the standard input
	cat records.jsonl | actorlog render --format json`

	demoCmdUsage = "demo"
	demoCmdShort = "exercise a sink configuration"
	demoCmdLong  = `Exercise a sink configuration.
	Two actors play ping pong for the requested number of exchanges, logging
	their lifecycle, every exchange and a final audit record to the sinks
	described in the configuration file.`

	demoCmdExample = `# Play five exchanges using the sinks described in sinks.yaml
	actorlog demo -c sinks.yaml --messages 5`
)

// RunCmd return the "run" cli command for starting the collector.
func RunCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:     runCmdUsage,
		Short:   heredoc.Doc(runCmdShort),
		Long:    heredoc.Doc(runCmdLong),
		Example: heredoc.Doc(runCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args:              cobra.NoArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := flags.toOptions(cmd)
			if err := opts.validate(); err != nil {
				return handleError(cmd, err)
			}

			if err := opts.execute(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}

// RenderCmd return the "render" cli command for printing JSON records.
func RenderCmd() *cobra.Command {
	flags := &renderFlags{}
	cmd := &cobra.Command{
		Use:     renderCmdUsage,
		Short:   heredoc.Doc(renderCmdShort),
		Long:    heredoc.Doc(renderCmdLong),
		Example: heredoc.Doc(renderCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.toOptions(cmd, args)
			if err != nil {
				return handleError(cmd, err)
			}
			defer opts.close()

			if err := opts.execute(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}

// DemoCmd return the "demo" cli command for exercising a sink configuration.
func DemoCmd() *cobra.Command {
	flags := &demoFlags{}
	cmd := &cobra.Command{
		Use:     demoCmdUsage,
		Short:   heredoc.Doc(demoCmdShort),
		Long:    heredoc.Doc(demoCmdLong),
		Example: heredoc.Doc(demoCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args:              cobra.NoArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := flags.toOptions(cmd)
			if err := opts.validate(); err != nil {
				return handleError(cmd, err)
			}

			if err := opts.execute(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}
