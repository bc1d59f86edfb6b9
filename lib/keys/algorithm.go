// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package keys

import "fmt"

// Algorithm identifies a signature algorithm. Raw key bytes are
// algorithm-agnostic, so any API accepting raw bytes takes an explicit
// Algorithm alongside them.
type Algorithm uint8

const (
	// Ed25519 is the default signature algorithm.
	Ed25519 Algorithm = iota

	// P256 is ECDSA over NIST P-256 with SHA-256, spelled "secp256r1"
	// in CLI flags and prefixed strings.
	P256
)

// String returns the canonical spelling used in flags and key prefixes.
func (a Algorithm) String() string {
	switch a {
	case Ed25519:
		return "ed25519"
	case P256:
		return "secp256r1"
	default:
		return fmt.Sprintf("algorithm(%d)", uint8(a))
	}
}

// ParseAlgorithm parses the canonical algorithm spellings.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "ed25519":
		return Ed25519, nil
	case "secp256r1":
		return P256, nil
	default:
		return 0, fmt.Errorf("keys: unknown algorithm %q (expected ed25519 or secp256r1)", s)
	}
}
