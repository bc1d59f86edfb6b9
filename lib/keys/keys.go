// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package keys

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Raw key sizes. Ed25519 private keys travel as the 32-byte seed, not
// the expanded 64-byte form; P-256 private keys travel as the 32-byte
// scalar and public keys as the 33-byte compressed point.
const (
	ed25519SeedSize    = ed25519.SeedSize
	ed25519PublicSize  = ed25519.PublicKeySize
	p256ScalarSize     = 32
	p256CompressedSize = 33
)

// Errors returned by key constructors.
var (
	ErrMalformedKey  = errors.New("keys: malformed key")
	ErrUnknownPrefix = errors.New("keys: unknown key prefix")
)

// PrivateKey is a signing key for one of the supported algorithms.
type PrivateKey struct {
	algorithm Algorithm
	ed        ed25519.PrivateKey
	ec        *ecdsa.PrivateKey
}

// PublicKey is a verification key for one of the supported algorithms.
type PublicKey struct {
	algorithm Algorithm
	ed        ed25519.PublicKey
	ec        *ecdsa.PublicKey
}

// KeyPair bundles a private key with its derived public key.
type KeyPair struct {
	Private *PrivateKey
	Public  *PublicKey
}

// Generate creates a fresh random keypair for the given algorithm.
func Generate(algorithm Algorithm) (*KeyPair, error) {
	switch algorithm {
	case Ed25519:
		_, private, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("keys: generating Ed25519 keypair: %w", err)
		}
		return NewKeyPair(&PrivateKey{algorithm: Ed25519, ed: private}), nil
	case P256:
		private, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("keys: generating P-256 keypair: %w", err)
		}
		return NewKeyPair(&PrivateKey{algorithm: P256, ec: private}), nil
	default:
		return nil, fmt.Errorf("keys: cannot generate keypair: unknown algorithm %v", algorithm)
	}
}

// NewKeyPair derives the public half from a private key.
func NewKeyPair(private *PrivateKey) *KeyPair {
	return &KeyPair{Private: private, Public: private.Public()}
}

// PrivateKeyFromBytes constructs a private key from raw bytes. The
// algorithm must be supplied by the caller: raw bytes carry no
// self-describing marker.
func PrivateKeyFromBytes(algorithm Algorithm, raw []byte) (*PrivateKey, error) {
	switch algorithm {
	case Ed25519:
		if len(raw) != ed25519SeedSize {
			return nil, fmt.Errorf("%w: Ed25519 private key has %d bytes, want %d", ErrMalformedKey, len(raw), ed25519SeedSize)
		}
		return &PrivateKey{algorithm: Ed25519, ed: ed25519.NewKeyFromSeed(raw)}, nil
	case P256:
		if len(raw) != p256ScalarSize {
			return nil, fmt.Errorf("%w: P-256 private key has %d bytes, want %d", ErrMalformedKey, len(raw), p256ScalarSize)
		}
		scalar := new(big.Int).SetBytes(raw)
		curve := elliptic.P256()
		if scalar.Sign() == 0 || scalar.Cmp(curve.Params().N) >= 0 {
			return nil, fmt.Errorf("%w: P-256 scalar out of range", ErrMalformedKey)
		}
		private := &ecdsa.PrivateKey{D: scalar}
		private.Curve = curve
		private.X, private.Y = curve.ScalarBaseMult(raw)
		return &PrivateKey{algorithm: P256, ec: private}, nil
	default:
		return nil, fmt.Errorf("keys: unknown algorithm %v", algorithm)
	}
}

// PublicKeyFromBytes constructs a public key from raw bytes.
func PublicKeyFromBytes(algorithm Algorithm, raw []byte) (*PublicKey, error) {
	switch algorithm {
	case Ed25519:
		if len(raw) != ed25519PublicSize {
			return nil, fmt.Errorf("%w: Ed25519 public key has %d bytes, want %d", ErrMalformedKey, len(raw), ed25519PublicSize)
		}
		return &PublicKey{algorithm: Ed25519, ed: ed25519.PublicKey(append([]byte(nil), raw...))}, nil
	case P256:
		if len(raw) != p256CompressedSize {
			return nil, fmt.Errorf("%w: P-256 public key has %d bytes, want %d (compressed point)", ErrMalformedKey, len(raw), p256CompressedSize)
		}
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), raw)
		if x == nil {
			return nil, fmt.Errorf("%w: P-256 point is not on the curve", ErrMalformedKey)
		}
		return &PublicKey{algorithm: P256, ec: &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}}, nil
	default:
		return nil, fmt.Errorf("keys: unknown algorithm %v", algorithm)
	}
}

// Algorithm returns the key's signature algorithm.
func (k *PrivateKey) Algorithm() Algorithm { return k.algorithm }

// Algorithm returns the key's signature algorithm.
func (k *PublicKey) Algorithm() Algorithm { return k.algorithm }

// Bytes returns the raw private key bytes: the Ed25519 seed or the
// P-256 scalar, both 32 bytes.
func (k *PrivateKey) Bytes() []byte {
	switch k.algorithm {
	case Ed25519:
		return k.ed.Seed()
	case P256:
		raw := make([]byte, p256ScalarSize)
		k.ec.D.FillBytes(raw)
		return raw
	}
	return nil
}

// Bytes returns the raw public key bytes: 32 bytes for Ed25519, the
// 33-byte compressed point for P-256.
func (k *PublicKey) Bytes() []byte {
	switch k.algorithm {
	case Ed25519:
		return append([]byte(nil), k.ed...)
	case P256:
		return elliptic.MarshalCompressed(elliptic.P256(), k.ec.X, k.ec.Y)
	}
	return nil
}

// Public derives the public half of the key.
func (k *PrivateKey) Public() *PublicKey {
	switch k.algorithm {
	case Ed25519:
		return &PublicKey{algorithm: Ed25519, ed: k.ed.Public().(ed25519.PublicKey)}
	case P256:
		return &PublicKey{algorithm: P256, ec: &k.ec.PublicKey}
	}
	return nil
}

// Sign signs message. Ed25519 signs the message directly; P-256 signs
// a SHA-256 digest and produces an ASN.1 DER signature.
func (k *PrivateKey) Sign(message []byte) ([]byte, error) {
	switch k.algorithm {
	case Ed25519:
		return ed25519.Sign(k.ed, message), nil
	case P256:
		digest := sha256.Sum256(message)
		signature, err := ecdsa.SignASN1(rand.Reader, k.ec, digest[:])
		if err != nil {
			return nil, fmt.Errorf("keys: P-256 signing: %w", err)
		}
		return signature, nil
	}
	return nil, fmt.Errorf("keys: unknown algorithm %v", k.algorithm)
}

// Verify reports whether signature is valid for message under this key.
func (k *PublicKey) Verify(message, signature []byte) bool {
	switch k.algorithm {
	case Ed25519:
		return ed25519.Verify(k.ed, message, signature)
	case P256:
		digest := sha256.Sum256(message)
		return ecdsa.VerifyASN1(k.ec, digest[:], signature)
	}
	return false
}

// Equal reports whether two public keys are the same key.
func (k *PublicKey) Equal(other *PublicKey) bool {
	if other == nil || k.algorithm != other.algorithm {
		return false
	}
	a, b := k.Bytes(), other.Bytes()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// String returns the prefixed hex form, e.g. "ed25519-private/0cb8...".
func (k *PrivateKey) String() string {
	return k.algorithm.String() + "-private/" + hex.EncodeToString(k.Bytes())
}

// String returns the prefixed hex form, e.g. "ed25519/2f61...".
func (k *PublicKey) String() string {
	return k.algorithm.String() + "/" + hex.EncodeToString(k.Bytes())
}

// ParsePrivateKey parses a prefixed hex private key string. A bare hex
// string (no prefix) is accepted as an Ed25519 private key for
// compatibility with keys generated before prefixes existed.
func ParsePrivateKey(s string) (*PrivateKey, error) {
	algorithm := Ed25519
	hexPart := s
	if prefix, rest, ok := strings.Cut(s, "/"); ok {
		algorithmName, found := strings.CutSuffix(prefix, "-private")
		if !found {
			return nil, fmt.Errorf("%w: %q is not a private key prefix", ErrUnknownPrefix, prefix)
		}
		parsed, err := ParseAlgorithm(algorithmName)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPrefix, prefix)
		}
		algorithm = parsed
		hexPart = rest
	}
	raw, err := hex.DecodeString(hexPart)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex: %v", ErrMalformedKey, err)
	}
	return PrivateKeyFromBytes(algorithm, raw)
}

// ParsePublicKey parses a prefixed hex public key string. A bare hex
// string is accepted as an Ed25519 public key.
func ParsePublicKey(s string) (*PublicKey, error) {
	algorithm := Ed25519
	hexPart := s
	if prefix, rest, ok := strings.Cut(s, "/"); ok {
		if strings.HasSuffix(prefix, "-private") {
			return nil, fmt.Errorf("%w: %q is a private key prefix", ErrUnknownPrefix, prefix)
		}
		parsed, err := ParseAlgorithm(prefix)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPrefix, prefix)
		}
		algorithm = parsed
		hexPart = rest
	}
	raw, err := hex.DecodeString(hexPart)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex: %v", ErrMalformedKey, err)
	}
	return PublicKeyFromBytes(algorithm, raw)
}
