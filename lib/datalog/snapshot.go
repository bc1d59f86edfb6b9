// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package datalog

import (
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/crumbtools/biscuit/lib/codec"
)

// Snapshot is a serialized dump of authorizer state: either the full
// authorization context (policies plus the loaded token blocks) or a
// policies-only snapshot taken before any token is loaded. A snapshot
// carries no signatures and is never a valid token.
//
// The wire form is zstd-compressed CBOR. Policy sets repeat predicate
// names heavily, so compression pays for itself on realistic inputs.
type Snapshot struct {
	Facts     []Fact      `cbor:"1,keyasint,omitempty"`
	Rules     []Rule      `cbor:"2,keyasint,omitempty"`
	Checks    []Check     `cbor:"3,keyasint,omitempty"`
	Policies  []Policy    `cbor:"4,keyasint,omitempty"`
	Blocks    []BlockCode `cbor:"5,keyasint,omitempty"`
	CreatedAt int64       `cbor:"6,keyasint"`
}

// Snapshot captures the full authorization context: authorizer facts,
// rules, checks, policies, and the loaded token blocks.
func (a *Authorizer) Snapshot() *Snapshot {
	return &Snapshot{
		Facts:     a.facts,
		Rules:     a.rules,
		Checks:    a.checks,
		Policies:  a.policies,
		Blocks:    a.blocks,
		CreatedAt: time.Now().Unix(),
	}
}

// PoliciesSnapshot captures only the authorizer-side rules, before
// any token is loaded. Useful for applying the same authorization
// policy set on every request.
func (a *Authorizer) PoliciesSnapshot() *Snapshot {
	return &Snapshot{
		Facts:     a.facts,
		Rules:     a.rules,
		Checks:    a.checks,
		Policies:  a.policies,
		CreatedAt: time.Now().Unix(),
	}
}

// Authorizer rebuilds an authorizer from the snapshot contents.
func (s *Snapshot) Authorizer() *Authorizer {
	return &Authorizer{
		facts:    s.Facts,
		rules:    s.Rules,
		checks:   s.Checks,
		policies: s.Policies,
		blocks:   s.Blocks,
	}
}

// Serialize encodes the snapshot as zstd-compressed CBOR.
func (s *Snapshot) Serialize() ([]byte, error) {
	payload, err := codec.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("datalog: encoding snapshot: %w", err)
	}
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("datalog: creating zstd encoder: %w", err)
	}
	defer encoder.Close()
	return encoder.EncodeAll(payload, nil), nil
}

// SerializeBase64 returns the serialized snapshot in the shared
// base64 alphabet.
func (s *Snapshot) SerializeBase64() (string, error) {
	raw, err := s.Serialize()
	if err != nil {
		return "", err
	}
	return codec.EncodeBase64(raw), nil
}

// ParseSnapshot decodes a zstd-compressed CBOR snapshot.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("datalog: creating zstd decoder: %w", err)
	}
	defer decoder.Close()
	payload, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("datalog: decompressing snapshot: %w", err)
	}
	var snapshot Snapshot
	if err := codec.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("datalog: decoding snapshot: %w", err)
	}
	return &snapshot, nil
}

// ParseSnapshotBase64 decodes a base64 snapshot.
func ParseSnapshotBase64(text string) (*Snapshot, error) {
	raw, err := codec.DecodeBase64(text)
	if err != nil {
		return nil, fmt.Errorf("datalog: snapshot is not valid base64: %w", err)
	}
	return ParseSnapshot(raw)
}
