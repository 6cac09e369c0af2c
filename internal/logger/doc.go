// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package logger is the process logger of actorlog, used for its own diagnostics
// and never for the records produced by actors. It wraps hclog behind a small
// interface, shares the severity names of the level package and makes loggers
// available through context helpers.
package logger
