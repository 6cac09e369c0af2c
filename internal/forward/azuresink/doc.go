// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package azuresink ships records to Microsoft Azure: as Event Hubs events or as
// JSON lines blobs in a storage container. Both sinks buffer the encoded records
// and send them on Flush.
package azuresink
