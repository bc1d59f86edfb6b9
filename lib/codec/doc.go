// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used for every binary
// artifact this tool produces: token wire format, third-party block
// requests and blocks, and authorizer snapshots.
//
// Encoding is RFC 8949 Core Deterministic Encoding. Consumers import
// only this package, not fxamacker/cbor directly, so the encoder
// configuration stays in one place.
package codec
