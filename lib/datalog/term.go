// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package datalog

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// TermKind discriminates the Term union.
type TermKind uint8

const (
	// TermVariable is an unbound variable ($name).
	TermVariable TermKind = iota

	// TermString is a string literal.
	TermString

	// TermInteger is a 64-bit signed integer literal.
	TermInteger

	// TermBool is a boolean literal.
	TermBool

	// TermDate is a point in time, stored as Unix seconds and written
	// as an RFC3339 timestamp in source.
	TermDate

	// TermBytes is a byte string, written as hex:<hex> in source.
	TermBytes

	// TermPublicKey is a public key in prefixed hex form
	// (e.g. ed25519/2f61...). Only producible through parameters.
	TermPublicKey

	// TermParameter is an unsubstituted {name} placeholder. A block
	// containing parameters cannot be evaluated; Bind must replace
	// them all first.
	TermParameter
)

// Term is one argument of a predicate. Exactly one payload field is
// meaningful, selected by Kind. The flat shape (instead of an
// interface) keeps the CBOR wire encoding simple and deterministic.
type Term struct {
	Kind  TermKind `cbor:"1,keyasint"`
	Str   string   `cbor:"2,keyasint,omitempty"`
	Int   int64    `cbor:"3,keyasint,omitempty"`
	Bool  bool     `cbor:"4,keyasint,omitempty"`
	Bytes []byte   `cbor:"5,keyasint,omitempty"`
}

// Var constructs a variable term.
func Var(name string) Term { return Term{Kind: TermVariable, Str: name} }

// StringTerm constructs a string term.
func StringTerm(value string) Term { return Term{Kind: TermString, Str: value} }

// IntTerm constructs an integer term.
func IntTerm(value int64) Term { return Term{Kind: TermInteger, Int: value} }

// BoolTerm constructs a boolean term.
func BoolTerm(value bool) Term { return Term{Kind: TermBool, Bool: value} }

// DateTerm constructs a date term from a time.Time (truncated to seconds).
func DateTerm(value time.Time) Term { return Term{Kind: TermDate, Int: value.Unix()} }

// BytesTerm constructs a byte-string term.
func BytesTerm(value []byte) Term { return Term{Kind: TermBytes, Bytes: value} }

// PublicKeyTerm constructs a public key term from a prefixed hex string.
func PublicKeyTerm(prefixed string) Term { return Term{Kind: TermPublicKey, Str: prefixed} }

// Parameter constructs an unsubstituted {name} placeholder.
func Parameter(name string) Term { return Term{Kind: TermParameter, Str: name} }

// IsGround reports whether the term is a concrete value (not a
// variable or parameter).
func (t Term) IsGround() bool {
	return t.Kind != TermVariable && t.Kind != TermParameter
}

// Equal reports whether two terms are the same value.
func (t Term) Equal(other Term) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case TermBytes:
		return bytes.Equal(t.Bytes, other.Bytes)
	case TermInteger, TermDate:
		return t.Int == other.Int
	case TermBool:
		return t.Bool == other.Bool
	default:
		return t.Str == other.Str
	}
}

// String renders the term in source syntax. The rendering is injective
// per kind, so it doubles as a map key for fact deduplication.
func (t Term) String() string {
	switch t.Kind {
	case TermVariable:
		return "$" + t.Str
	case TermParameter:
		return "{" + t.Str + "}"
	case TermString:
		return strconv.Quote(t.Str)
	case TermInteger:
		return strconv.FormatInt(t.Int, 10)
	case TermBool:
		return strconv.FormatBool(t.Bool)
	case TermDate:
		return time.Unix(t.Int, 0).UTC().Format(time.RFC3339)
	case TermBytes:
		return "hex:" + hex.EncodeToString(t.Bytes)
	case TermPublicKey:
		return t.Str
	default:
		return fmt.Sprintf("term(%d)", t.Kind)
	}
}
