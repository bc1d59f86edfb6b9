// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

// Package keys provides the key material used to sign and verify
// tokens: Ed25519 and ECDSA P-256 private/public keys with the codecs
// the CLI needs (raw bytes, PKCS#8/PKIX PEM, prefixed hex strings) and
// passphrase-sealed key files built on age scrypt encryption.
//
// Prefixed hex is the human-facing interchange format:
//
//	ed25519/2f61ba56...            public key
//	ed25519-private/0cb8712a...    private key
//	secp256r1/02a1...              P-256 public key (compressed point)
//	secp256r1-private/7d40...      P-256 private key (scalar)
//
// Raw bytes carry no algorithm marker, so every raw-byte constructor
// takes an explicit Algorithm.
package keys
