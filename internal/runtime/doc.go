// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package runtime is the actor runtime that log records originate from.
//
// It only carries what logging needs from a host runtime: a Core owning the log
// filter and the logger hook, log ids handed out to actors, and actors that
// report their own start and termination as Open and Close records.
package runtime
