// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package kv defines how key/value pairs attached to a log record are visited, and
// converts ordinary Go values into visitor calls.
//
// A record never stores its pairs eagerly: it holds a Scan, a function that
// replays the pairs into whatever Visitor the consumer provides. Renderers and
// forwarders are just different visitors.
package kv
