// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAndStop(t *testing.T) {
	t.Parallel()

	server := NewFakeServer(t)
	onStart := false
	server.OnStart = func() { onStart = true }

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	<-server.StartedServer()
	assert.True(t, onStart)
	require.NoError(t, server.Stop(t.Context()))
	require.NoError(t, server.Stop(t.Context()))
	<-server.StoppedServer()
	require.NoError(t, <-errChan)
}

func TestStartError(t *testing.T) {
	t.Parallel()

	server := NewFakeServer(t)
	server.StartErr = errors.New("address already in use")

	require.ErrorIs(t, server.Start(), server.StartErr)
	select {
	case <-server.StartedServer():
		assert.Fail(t, "server should not be started")
	default:
	}
}
