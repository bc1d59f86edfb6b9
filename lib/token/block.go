// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"time"

	"github.com/crumbtools/biscuit/lib/datalog"
)

// currentBlockVersion is written into every new block payload.
// Decoders ignore unknown payload fields, so minor revisions stay
// compatible; the version marks points where they can't.
const currentBlockVersion = 1

// BlockBuilder assembles the datalog content of one block (authority
// or attenuation) before it is signed.
type BlockBuilder struct {
	facts      []datalog.Fact
	rules      []datalog.Rule
	checks     []datalog.Check
	context    string
	expiration *time.Time
}

// NewBlockBuilder returns an empty builder.
func NewBlockBuilder() *BlockBuilder {
	return &BlockBuilder{}
}

// AddProgram appends parsed block datalog. The program must already
// have its parameters bound; Build and Append reject unbound
// parameters via datalog.Program.CheckBound upstream.
func (b *BlockBuilder) AddProgram(program *datalog.Program) *BlockBuilder {
	b.facts = append(b.facts, program.Facts...)
	b.rules = append(b.rules, program.Rules...)
	b.checks = append(b.checks, program.Checks...)
	return b
}

// SetContext attaches the optional free-form context string.
func (b *BlockBuilder) SetContext(context string) *BlockBuilder {
	b.context = context
	return b
}

// CheckExpiration appends a TTL check: the block only authorizes when
// the authorizer's time fact is at or before expiry.
func (b *BlockBuilder) CheckExpiration(expiry time.Time) *BlockBuilder {
	b.expiration = &expiry
	return b
}

// payload produces the wire payload for this block.
func (b *BlockBuilder) payload() blockPayload {
	checks := b.checks
	if b.expiration != nil {
		checks = append(checks[:len(checks):len(checks)], expirationCheck(*b.expiration))
	}
	return blockPayload{
		Facts:   b.facts,
		Rules:   b.rules,
		Checks:  checks,
		Context: b.context,
		Version: currentBlockVersion,
	}
}

// expirationCheck builds `check if time($time), $time <= <expiry>`.
func expirationCheck(expiry time.Time) datalog.Check {
	return datalog.Check{Queries: []datalog.Rule{{
		Head: datalog.Predicate{Name: "query"},
		Body: []datalog.Predicate{{Name: "time", Terms: []datalog.Term{datalog.Var("time")}}},
		Expressions: []datalog.Expression{{
			Left:  datalog.Var("time"),
			Op:    datalog.OpLessOrEqual,
			Right: datalog.DateTerm(expiry),
		}},
	}}}
}
