// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package forward routes the records logged on a runtime.Core to one or more sinks.
// Each sink is attached with its own level filter; the core is configured with the
// union of them so that records nobody wants are never built.
package forward
