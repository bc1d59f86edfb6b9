// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"fmt"

	"github.com/crumbtools/biscuit/lib/keys"
)

// stdinSentinel is the conventional path meaning "read stdin instead".
const stdinSentinel = "-"

// Source is any input description that may be bound to stdin. The
// conflict validator counts consumers through this interface.
type Source interface {
	// UsesStdin reports whether resolving this source reads stdin.
	UsesStdin() bool
}

// KeyFormat is the encoding of key material read from a file or
// stream. Literals are always text, so they never carry a format.
type KeyFormat uint8

const (
	// KeyHex is hex text, bare or with an algorithm prefix.
	KeyHex KeyFormat = iota

	// KeyPEM is a PKCS#8 (private) or PKIX (public) PEM envelope.
	KeyPEM

	// KeyRaw is raw key bytes. Raw bytes carry no algorithm marker,
	// so sources using it also carry an explicit algorithm tag.
	KeyRaw
)

// ParseKeyFormat maps a flag value to a KeyFormat.
func ParseKeyFormat(s string) (KeyFormat, error) {
	switch s {
	case "hex":
		return KeyHex, nil
	case "pem":
		return KeyPEM, nil
	case "raw":
		return KeyRaw, nil
	default:
		return 0, fmt.Errorf("input: unknown key format %q (want hex, pem, or raw)", s)
	}
}

// String returns the flag spelling of the format.
func (f KeyFormat) String() string {
	switch f {
	case KeyHex:
		return "hex"
	case KeyPEM:
		return "pem"
	case KeyRaw:
		return "raw"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

type keyOrigin uint8

const (
	keyOriginLiteral keyOrigin = iota
	keyOriginPEMLiteral
	keyOriginFile
	keyOriginStdin
)

// KeySource describes where private or public key material comes from.
// Construct it through KeyLiteral, KeyPEMLiteral, or KeyFromFile; the
// constructors only produce the combinations that can work.
type KeySource struct {
	origin    keyOrigin
	text      string
	path      string
	format    KeyFormat
	algorithm keys.Algorithm
}

// KeyLiteral is a key given directly on the command line as hex text,
// bare or with an algorithm prefix.
func KeyLiteral(text string) KeySource {
	return KeySource{origin: keyOriginLiteral, text: text}
}

// KeyPEMLiteral is a PEM document given directly on the command line.
func KeyPEMLiteral(text string) KeySource {
	return KeySource{origin: keyOriginPEMLiteral, text: text}
}

// KeyFromFile reads key material from a file in the given format. The
// path "-" means stdin. The algorithm tag is consulted only when
// format is KeyRaw; hex and PEM inputs are self-describing.
func KeyFromFile(path string, format KeyFormat, algorithm keys.Algorithm) KeySource {
	if path == stdinSentinel {
		return KeySource{origin: keyOriginStdin, format: format, algorithm: algorithm}
	}
	return KeySource{origin: keyOriginFile, path: path, format: format, algorithm: algorithm}
}

// UsesStdin reports whether resolving this source reads stdin.
func (s KeySource) UsesStdin() bool { return s.origin == keyOriginStdin }

// TokenEncoding is the encoding of token, request, or block payload
// bytes read from a file or stream.
type TokenEncoding uint8

const (
	// EncodingBase64 is URL-safe unpadded base64 text.
	EncodingBase64 TokenEncoding = iota

	// EncodingRaw is the binary wire format unchanged.
	EncodingRaw
)

type tokenOrigin uint8

const (
	tokenOriginLiteral tokenOrigin = iota
	tokenOriginFile
	tokenOriginStdin
)

// TokenSource describes where token, request, or third-party block
// payload bytes come from.
type TokenSource struct {
	origin   tokenOrigin
	text     string
	path     string
	encoding TokenEncoding
}

// TokenLiteral is a payload given directly on the command line.
// Literals are always base64 text.
func TokenLiteral(text string) TokenSource {
	return TokenSource{origin: tokenOriginLiteral, text: text}
}

// TokenFromFile reads a payload from a file in the given encoding.
// The path "-" means stdin.
func TokenFromFile(path string, encoding TokenEncoding) TokenSource {
	if path == stdinSentinel {
		return TokenSource{origin: tokenOriginStdin, encoding: encoding}
	}
	return TokenSource{origin: tokenOriginFile, path: path, encoding: encoding}
}

// UsesStdin reports whether resolving this source reads stdin.
func (s TokenSource) UsesStdin() bool { return s.origin == tokenOriginStdin }

type datalogOrigin uint8

const (
	datalogOriginLiteral datalogOrigin = iota
	datalogOriginFile
	datalogOriginStdin
	datalogOriginEditor
)

// DatalogSource describes where datalog source text comes from.
type DatalogSource struct {
	origin datalogOrigin
	text   string
	path   string
}

// DatalogLiteral is source text given directly on the command line.
func DatalogLiteral(text string) DatalogSource {
	return DatalogSource{origin: datalogOriginLiteral, text: text}
}

// DatalogFromFile reads source text from a file. The path "-" means
// stdin.
func DatalogFromFile(path string) DatalogSource {
	if path == stdinSentinel {
		return DatalogSource{origin: datalogOriginStdin}
	}
	return DatalogSource{origin: datalogOriginFile, path: path}
}

// DatalogFromEditor opens the user's editor on an empty buffer and
// takes its final contents. This is the default when a command gets no
// other source.
func DatalogFromEditor() DatalogSource {
	return DatalogSource{origin: datalogOriginEditor}
}

// UsesStdin reports whether resolving this source reads stdin.
func (s DatalogSource) UsesStdin() bool { return s.origin == datalogOriginStdin }
