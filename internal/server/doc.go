// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package server contains the HTTP collector of actorlog.
// It sets up the HTTP server using the Fiber framework, configures middleware for logging,
// and accepts JSON records that are logged into a runtime core, so that they follow
// the same routing as the records produced by local actors.
package server
