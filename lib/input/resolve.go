// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/crumbtools/biscuit/lib/codec"
	"github.com/crumbtools/biscuit/lib/keys"
)

// readSource fetches the raw bytes behind a file or stdin source.
func readSource(path string, stdin *Stdin) ([]byte, error) {
	if path == "" {
		return stdin.ReadAll()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("input: reading %s: %w", path, err)
	}
	return data, nil
}

// ResolveKey produces a private key from its source. Hex and PEM
// inputs carry their own algorithm; raw bytes are interpreted per the
// source's algorithm tag.
func ResolveKey(source KeySource, stdin *Stdin) (*keys.PrivateKey, error) {
	switch source.origin {
	case keyOriginLiteral:
		key, err := keys.ParsePrivateKey(strings.TrimSpace(source.text))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		return key, nil
	case keyOriginPEMLiteral:
		key, err := keys.PrivateKeyFromPEM([]byte(source.text))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		return key, nil
	case keyOriginFile, keyOriginStdin:
		data, err := readSource(source.path, stdin)
		if err != nil {
			return nil, err
		}
		return privateKeyFromBytes(data, source.format, source.algorithm)
	default:
		panic(fmt.Sprintf("input: unhandled key origin %d", source.origin))
	}
}

func privateKeyFromBytes(data []byte, format KeyFormat, algorithm keys.Algorithm) (*keys.PrivateKey, error) {
	var key *keys.PrivateKey
	var err error
	switch format {
	case KeyHex:
		key, err = keys.ParsePrivateKey(strings.TrimSpace(string(data)))
	case KeyPEM:
		key, err = keys.PrivateKeyFromPEM(data)
	case KeyRaw:
		key, err = keys.PrivateKeyFromBytes(algorithm, data)
	default:
		panic(fmt.Sprintf("input: unhandled key format %d", format))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return key, nil
}

// ResolvePublicKey produces a public key from its source, with the
// same format handling as ResolveKey.
func ResolvePublicKey(source KeySource, stdin *Stdin) (*keys.PublicKey, error) {
	switch source.origin {
	case keyOriginLiteral:
		key, err := keys.ParsePublicKey(strings.TrimSpace(source.text))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		return key, nil
	case keyOriginPEMLiteral:
		key, err := keys.PublicKeyFromPEM([]byte(source.text))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		return key, nil
	case keyOriginFile, keyOriginStdin:
		data, err := readSource(source.path, stdin)
		if err != nil {
			return nil, err
		}
		return publicKeyFromBytes(data, source.format, source.algorithm)
	default:
		panic(fmt.Sprintf("input: unhandled key origin %d", source.origin))
	}
}

func publicKeyFromBytes(data []byte, format KeyFormat, algorithm keys.Algorithm) (*keys.PublicKey, error) {
	var key *keys.PublicKey
	var err error
	switch format {
	case KeyHex:
		key, err = keys.ParsePublicKey(strings.TrimSpace(string(data)))
	case KeyPEM:
		key, err = keys.PublicKeyFromPEM(data)
	case KeyRaw:
		key, err = keys.PublicKeyFromBytes(algorithm, data)
	default:
		panic(fmt.Sprintf("input: unhandled key format %d", format))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return key, nil
}

// ResolveToken produces the binary payload behind a token, request, or
// third-party block source.
func ResolveToken(source TokenSource, stdin *Stdin) ([]byte, error) {
	switch source.origin {
	case tokenOriginLiteral:
		raw, err := codec.DecodeBase64(strings.TrimSpace(source.text))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		return raw, nil
	case tokenOriginFile, tokenOriginStdin:
		data, err := readSource(source.path, stdin)
		if err != nil {
			return nil, err
		}
		if source.encoding == EncodingRaw {
			return data, nil
		}
		raw, err := codec.DecodeBase64(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		return raw, nil
	default:
		panic(fmt.Sprintf("input: unhandled token origin %d", source.origin))
	}
}

// ResolveDatalog produces datalog source text. File and stdin inputs
// must be valid UTF-8; editor sources run the user's editor through
// the given Editor.
func ResolveDatalog(source DatalogSource, stdin *Stdin, editor *Editor) (string, error) {
	switch source.origin {
	case datalogOriginLiteral:
		return source.text, nil
	case datalogOriginFile, datalogOriginStdin:
		data, err := readSource(source.path, stdin)
		if err != nil {
			return "", err
		}
		if !utf8.Valid(data) {
			return "", ErrInvalidText
		}
		return string(data), nil
	case datalogOriginEditor:
		return editor.Edit()
	default:
		panic(fmt.Sprintf("input: unhandled datalog origin %d", source.origin))
	}
}
