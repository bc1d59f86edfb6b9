// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

// Package token implements the chained-signature token format: an
// authority block signed by a root key, zero or more attenuation
// blocks each signed by the previous block's ephemeral key, and a
// proof that is either the last ephemeral private key (open token,
// appendable by the holder) or a final signature (sealed token, no
// further appends).
//
// Third-party blocks are exchanged out of band: the token holder
// produces a request carrying the last block's signature, the third
// party signs a block against that request with its own key, and the
// holder appends the result. The third-party signature binds the
// block to the exact token state the request was derived from.
//
// Wire format is deterministic CBOR (lib/codec) with the shared
// URL-safe base64 for text transport. Block payloads are signed as
// encoded bytes and kept verbatim, so re-serialization never breaks
// signatures.
package token
