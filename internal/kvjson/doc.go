// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package kvjson renders key/value pairs as compact single line JSON and parses such
// JSON back into a scan.
//
// The rendering contains only the comma separated pairs, without the enclosing
// braces, so that it can extend a larger JSON object being built up: a prefix of
// "," appends the pairs to an object, while ",\"kv\":{" with a suffix of "}" adds
// an optional "kv" member only when there is key/value data.
package kvjson
