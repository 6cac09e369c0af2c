// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package level defines the record levels understood by the actor runtime and the
// filters used to select which of them reach a logger.
package level
