// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package writer implements a sink that writes every received record to the given
// io.Writer instance, one record per line.
// It is primarily useful for local development, or for piping records to another
// process that parses the json format.
package writer
