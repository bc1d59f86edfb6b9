// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package datalog

import (
	"fmt"
	"strings"
)

// BlockCode is the datalog content of one token block, as loaded into
// an authorizer. Block 0 is the authority block; later blocks are
// attenuations. External carries the third-party signer's public key
// in prefixed hex form when the block was signed by someone other
// than the token's root key.
type BlockCode struct {
	Facts    []Fact  `cbor:"1,keyasint,omitempty"`
	Rules    []Rule  `cbor:"2,keyasint,omitempty"`
	Checks   []Check `cbor:"3,keyasint,omitempty"`
	Context  string  `cbor:"4,keyasint,omitempty"`
	External string  `cbor:"5,keyasint,omitempty"`
}

// Source renders the block's datalog in source syntax, one statement
// per line, for inspection output.
func (b BlockCode) Source() string {
	var lines []string
	for _, fact := range b.Facts {
		lines = append(lines, fact.String()+";")
	}
	for _, rule := range b.Rules {
		lines = append(lines, rule.String()+";")
	}
	for _, check := range b.Checks {
		lines = append(lines, check.String()+";")
	}
	return strings.Join(lines, "\n")
}

// Decision is the outcome of an authorization run.
type Decision int

const (
	// Deny means authorization failed: a check failed, a deny policy
	// matched, or no policy matched.
	Deny Decision = iota

	// Allow means every check passed and an allow policy matched.
	Allow
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// FailedCheck identifies a check that did not pass. Block is the
// token block index, or OriginAuthorizer for authorizer-side checks.
type FailedCheck struct {
	Block int
	Index int
	Check Check
}

// AuthorizeResult is the outcome of Authorize: the decision, the
// policy that decided it, and every failed check.
type AuthorizeResult struct {
	Decision Decision

	// PolicyIndex is the index of the deciding policy, or -1 when no
	// policy matched.
	PolicyIndex int

	// Policy is the deciding policy, nil when no policy matched.
	Policy *Policy

	// FailedChecks lists the checks that did not pass, across the
	// authorizer and every token block.
	FailedChecks []FailedCheck
}

// Err converts a denial into an error. Allow returns nil.
func (r *AuthorizeResult) Err() error {
	if r.Decision == Allow {
		return nil
	}
	if len(r.FailedChecks) > 0 {
		descriptions := make([]string, len(r.FailedChecks))
		for i, failed := range r.FailedChecks {
			where := fmt.Sprintf("block %d", failed.Block)
			if failed.Block == OriginAuthorizer {
				where = "authorizer"
			}
			descriptions[i] = fmt.Sprintf("%s check %d: %s", where, failed.Index, failed.Check)
		}
		return fmt.Errorf("datalog: authorization denied, failed checks: %s", strings.Join(descriptions, "; "))
	}
	if r.Policy != nil {
		return fmt.Errorf("datalog: authorization denied by policy %d: %s", r.PolicyIndex, r.Policy)
	}
	return fmt.Errorf("datalog: authorization denied: no policy matched")
}

// Authorizer evaluates a token's blocks against authorizer-side facts,
// rules, checks, and policies.
type Authorizer struct {
	facts    []Fact
	rules    []Rule
	checks   []Check
	policies []Policy
	blocks   []BlockCode

	// world is the saturated fact store from the last Authorize or
	// Query call, reused by later queries.
	world *world
}

// NewAuthorizer returns an empty authorizer.
func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

// AddProgram appends parsed authorizer-side datalog.
func (a *Authorizer) AddProgram(program *Program) {
	a.facts = append(a.facts, program.Facts...)
	a.rules = append(a.rules, program.Rules...)
	a.checks = append(a.checks, program.Checks...)
	a.policies = append(a.policies, program.Policies...)
}

// AddFact appends a single authorizer-side fact (e.g. the current
// time).
func (a *Authorizer) AddFact(fact Fact) {
	a.facts = append(a.facts, fact)
}

// SetBlocks loads the token's block contents. Block 0 is the
// authority block.
func (a *Authorizer) SetBlocks(blocks []BlockCode) {
	a.blocks = blocks
}

// Facts returns the authorizer-side facts (for snapshots and reports).
func (a *Authorizer) Facts() []Fact { return a.facts }

// Policies returns the authorizer-side policies.
func (a *Authorizer) Policies() []Policy { return a.policies }

// buildWorld populates and saturates a fresh world from the
// authorizer's contents and the loaded blocks.
func (a *Authorizer) buildWorld(limits RunLimits) (*world, error) {
	w := newWorld(limits)
	for _, fact := range a.facts {
		if _, err := w.addFact(OriginAuthorizer, fact); err != nil {
			return nil, err
		}
	}
	for _, rule := range a.rules {
		w.addRule(OriginAuthorizer, rule)
	}
	for index, block := range a.blocks {
		for _, fact := range block.Facts {
			if _, err := w.addFact(index, fact); err != nil {
				return nil, err
			}
		}
		for _, rule := range block.Rules {
			w.addRule(index, rule)
		}
	}
	if err := w.run(); err != nil {
		return nil, err
	}
	return w, nil
}

// Authorize saturates the world and evaluates all checks and
// policies. The returned result distinguishes failed checks from
// policy denials; an error is returned only when evaluation itself
// fails (run limits, unbound variables).
func (a *Authorizer) Authorize(limits RunLimits) (*AuthorizeResult, error) {
	w, err := a.buildWorld(limits)
	if err != nil {
		return nil, err
	}
	a.world = w

	result := &AuthorizeResult{PolicyIndex: -1}

	// Token block checks run in their own block's scope.
	for blockIndex, block := range a.blocks {
		for checkIndex, check := range block.Checks {
			passed, err := a.checkPasses(w, blockIndex, check)
			if err != nil {
				return nil, err
			}
			if !passed {
				result.FailedChecks = append(result.FailedChecks, FailedCheck{Block: blockIndex, Index: checkIndex, Check: check})
			}
		}
	}
	// Authorizer checks run in the authorizer's scope.
	for checkIndex, check := range a.checks {
		passed, err := a.checkPasses(w, OriginAuthorizer, check)
		if err != nil {
			return nil, err
		}
		if !passed {
			result.FailedChecks = append(result.FailedChecks, FailedCheck{Block: OriginAuthorizer, Index: checkIndex, Check: check})
		}
	}

	// First matching policy decides. Checks must all have passed for
	// an allow to stand.
	for index := range a.policies {
		policy := &a.policies[index]
		matched := false
		for _, query := range policy.Queries {
			ok, err := w.anyMatch(visibleOrigins(OriginAuthorizer), query)
			if err != nil {
				return nil, err
			}
			if ok {
				matched = true
				break
			}
		}
		if matched {
			result.PolicyIndex = index
			result.Policy = policy
			if policy.Allow && len(result.FailedChecks) == 0 {
				result.Decision = Allow
			}
			return result, nil
		}
	}

	return result, nil
}

func (a *Authorizer) checkPasses(w *world, origin int, check Check) (bool, error) {
	for _, query := range check.Queries {
		ok, err := w.anyMatch(visibleOrigins(origin), query)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Query runs a rule against the saturated world and returns the
// derived facts. Trusted scope is the authority block plus the
// authorizer; all widens the scope to every block's facts, which can
// return untrustworthy results.
//
// When Authorize has not run yet (inspecting a token without an
// authorizer), the world is built on demand.
func (a *Authorizer) Query(rule Rule, limits RunLimits, all bool) ([]Fact, error) {
	if a.world == nil {
		w, err := a.buildWorld(limits)
		if err != nil {
			return nil, err
		}
		a.world = w
	}

	origins := visibleOrigins(OriginAuthorizer)
	if all {
		origins = origins[:0:0]
		for origin := range a.world.facts {
			origins = append(origins, origin)
		}
	}

	derived, err := a.world.deriveRule(origins, rule)
	if err != nil {
		return nil, err
	}

	// Deduplicate: the same binding can arise from several origins.
	seen := map[string]bool{}
	unique := derived[:0]
	for _, fact := range derived {
		key := fact.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, fact)
	}
	return unique, nil
}
