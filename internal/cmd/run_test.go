// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/actorlog/internal/kvlog"
	"github.com/mia-platform/actorlog/internal/runtime"
	"github.com/mia-platform/actorlog/internal/server"
	"github.com/mia-platform/actorlog/internal/server/fake"
)

var errListen = errors.New("address already in use")

func TestRunExecute(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		startErr       error
		expectedError  error
		expectedOutput string
	}{
		"stops on context cancellation and drains sinks": {
			expectedOutput: "INFO #0 collector: received {records=1}\n",
		},
		"returns the listen error": {
			startErr:      errListen,
			expectedError: errListen,
		},
	}

	for testName, test := range testCases {
		t.Run(testName, func(t *testing.T) {
			t.Parallel()

			outBuffer := new(bytes.Buffer)
			cmd := &cobra.Command{}
			cmd.SetOut(outBuffer)

			collector := fake.NewFakeServer(t)
			collector.StartErr = test.startErr
			opts := &runOptions{
				configPath: filepath.Join("testdata", "stdout.yaml"),
				cmd:        cmd,
				newCollector: func(_ context.Context, core *runtime.Core) (server.Collector, error) {
					collector.OnStart = func() {
						kvlog.Info(kvlog.WithTarget(core, "collector"), "received", "records", 1)
					}
					return collector, nil
				},
			}
			require.NoError(t, opts.validate())

			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			errChan := make(chan error, 1)
			go func() {
				errChan <- opts.execute(ctx)
			}()

			if test.startErr == nil {
				<-collector.StartedServer()
				cancel()
			}

			err := <-errChan
			if test.expectedError != nil {
				require.ErrorIs(t, err, test.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expectedOutput, outBuffer.String())
		})
	}
}

func TestRunCollectorError(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{}
	cmd.SetOut(new(bytes.Buffer))
	opts := &runOptions{
		configPath: filepath.Join("testdata", "stdout.yaml"),
		cmd:        cmd,
		newCollector: func(context.Context, *runtime.Core) (server.Collector, error) {
			return nil, errListen
		},
	}

	require.ErrorIs(t, opts.execute(t.Context()), errListen)
}
