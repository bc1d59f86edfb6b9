// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

// Package input resolves the heterogeneous inputs of a command
// invocation (keys, tokens, datalog source, third-party payloads)
// into typed values.
//
// Each logical input is described by a source value built through a
// validated constructor: where the payload comes from (file, stdin,
// literal, editor) and how it is encoded (raw, base64, hex, PEM).
// Combinations that cannot work, such as a raw-binary literal on the
// command line or "-" as a real filename, are unrepresentable.
//
// Stdin is a singleton resource. It is passed to resolvers as an
// explicit once-readable *Stdin handle, and EnsureSingleStdin rejects
// any invocation that binds two inputs to it before either is read.
package input
