// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

// Package datalog implements the authorization language embedded in
// token blocks and authorizer policies: facts, rules, checks, and
// allow/deny policies over typed terms (strings, integers, booleans,
// dates, byte strings, public keys).
//
// Evaluation is bottom-up saturation under explicit run limits (fact
// count, iteration count, wall-clock time) so untrusted token blocks
// cannot drive the authorizer into runaway derivation.
//
// Fact visibility follows block scoping: the authority block (index 0)
// and the authorizer's own facts are trusted everywhere; an
// attenuation block's facts are visible only to that block's checks.
// Queries run against trusted facts unless explicitly widened to all
// blocks.
package datalog
