// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package keys

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// PEM block types. Private keys use PKCS#8, public keys use PKIX, both
// of which embed the algorithm identifier so PEM inputs never need an
// accompanying algorithm flag.
const (
	privateKeyBlockType = "PRIVATE KEY"
	publicKeyBlockType  = "PUBLIC KEY"
)

// PrivateKeyFromPEM parses a PKCS#8 PEM private key. The algorithm is
// taken from the PKCS#8 envelope.
func PrivateKeyFromPEM(data []byte) (*PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrMalformedKey)
	}
	if block.Type != privateKeyBlockType {
		return nil, fmt.Errorf("%w: PEM block is %q, want %q", ErrMalformedKey, block.Type, privateKeyBlockType)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing PKCS#8: %v", ErrMalformedKey, err)
	}
	switch key := parsed.(type) {
	case ed25519.PrivateKey:
		return &PrivateKey{algorithm: Ed25519, ed: key}, nil
	case *ecdsa.PrivateKey:
		if key.Curve != elliptic.P256() {
			return nil, fmt.Errorf("%w: unsupported curve %s", ErrMalformedKey, key.Curve.Params().Name)
		}
		return &PrivateKey{algorithm: P256, ec: key}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported PKCS#8 key type %T", ErrMalformedKey, parsed)
	}
}

// PublicKeyFromPEM parses a PKIX PEM public key.
func PublicKeyFromPEM(data []byte) (*PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrMalformedKey)
	}
	if block.Type != publicKeyBlockType {
		return nil, fmt.Errorf("%w: PEM block is %q, want %q", ErrMalformedKey, block.Type, publicKeyBlockType)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing PKIX: %v", ErrMalformedKey, err)
	}
	switch key := parsed.(type) {
	case ed25519.PublicKey:
		return &PublicKey{algorithm: Ed25519, ed: key}, nil
	case *ecdsa.PublicKey:
		if key.Curve != elliptic.P256() {
			return nil, fmt.Errorf("%w: unsupported curve %s", ErrMalformedKey, key.Curve.Params().Name)
		}
		return &PublicKey{algorithm: P256, ec: key}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported PKIX key type %T", ErrMalformedKey, parsed)
	}
}

// PEM encodes the private key as a PKCS#8 PEM block.
func (k *PrivateKey) PEM() ([]byte, error) {
	var material any
	switch k.algorithm {
	case Ed25519:
		material = k.ed
	case P256:
		material = k.ec
	default:
		return nil, fmt.Errorf("keys: unknown algorithm %v", k.algorithm)
	}
	der, err := x509.MarshalPKCS8PrivateKey(material)
	if err != nil {
		return nil, fmt.Errorf("keys: encoding PKCS#8: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: privateKeyBlockType, Bytes: der}), nil
}

// PEM encodes the public key as a PKIX PEM block.
func (k *PublicKey) PEM() ([]byte, error) {
	var material any
	switch k.algorithm {
	case Ed25519:
		material = k.ed
	case P256:
		material = k.ec
	default:
		return nil, fmt.Errorf("keys: unknown algorithm %v", k.algorithm)
	}
	der, err := x509.MarshalPKIXPublicKey(material)
	if err != nil {
		return nil, fmt.Errorf("keys: encoding PKIX: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: publicKeyBlockType, Bytes: der}), nil
}
