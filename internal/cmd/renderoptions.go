// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/forward/writer"
)

const (
	formatFlagName  = "format"
	formatFlagUsage = "Output format of the records (possible values: text, json)"
	defaultFormat   = "text"

	stdinArgument = "-"

	// maxLineSize is the longest input line accepted by render.
	maxLineSize = 4 * 1024 * 1024
)

// renderFlags holds the flags for the "render" command.
type renderFlags struct {
	format string
}

// addFlags adds the cli flags to the cobra command.
func (f *renderFlags) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.format, formatFlagName, defaultFormat, formatFlagUsage)
	_ = cmd.RegisterFlagCompletionFunc(formatFlagName, completeFormats)
}

// toOptions converts the render flags to renderOptions, opening the input file
// named in args.
func (f *renderFlags) toOptions(cmd *cobra.Command, args []string) (*renderOptions, error) {
	format, err := writer.ParseFormat(f.format)
	if err != nil {
		return nil, err
	}

	opts := &renderOptions{
		input:  cmd.InOrStdin(),
		output: cmd.OutOrStdout(),
		format: format,
		name:   stdinArgument,
	}

	if len(args) > 0 && args[0] != stdinArgument {
		file, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		opts.input = file
		opts.closer = file
		opts.name = args[0]
	}

	return opts, nil
}

// renderOptions holds the options set for the current render function.
type renderOptions struct {
	input  io.Reader
	closer io.Closer
	name   string
	output io.Writer
	format writer.Format
}

// execute prints every record read from the input. Empty lines are skipped.
func (o *renderOptions) execute(ctx context.Context) error {
	sink := writer.NewSink(o.output, o.format)

	scanner := bufio.NewScanner(o.input)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for lineNumber := 1; scanner.Scan(); lineNumber++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		records, err := forward.DecodeJSONBatch(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", o.name, lineNumber, err)
		}

		for _, record := range records {
			if err := sink.Forward(ctx, record); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s: %w", o.name, err)
	}
	return nil
}

func (o *renderOptions) close() {
	if o.closer != nil {
		_ = o.closer.Close()
	}
}
