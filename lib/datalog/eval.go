// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package datalog

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

// RunLimits bounds evaluation so untrusted token blocks cannot drive
// the authorizer into runaway derivation.
type RunLimits struct {
	// MaxFacts is the total number of distinct facts (supplied plus
	// derived) allowed in the world.
	MaxFacts int

	// MaxIterations is the number of saturation passes allowed before
	// aborting.
	MaxIterations int

	// MaxTime is the wall-clock budget for one evaluation.
	MaxTime time.Duration
}

// DefaultRunLimits matches the limits the original tool ships with.
var DefaultRunLimits = RunLimits{
	MaxFacts:      1000,
	MaxIterations: 100,
	MaxTime:       100 * time.Millisecond,
}

// Errors returned when evaluation exceeds its limits.
var (
	ErrTooManyFacts      = errors.New("datalog: too many facts generated")
	ErrTooManyIterations = errors.New("datalog: too many iterations")
	ErrEvaluationTimeout = errors.New("datalog: evaluation timed out")
)

// Fact origins. Attenuation blocks use their 1-based block index.
const (
	// OriginAuthority is the token's authority block.
	OriginAuthority = 0

	// OriginAuthorizer is the authorizer's own facts and rules.
	OriginAuthorizer = -1
)

// originRule is a rule bound to the block it came from. Derived facts
// land in that block's origin and are only visible where the block's
// own facts are.
type originRule struct {
	origin int
	rule   Rule
}

// world is the fact store during one evaluation.
type world struct {
	limits    RunLimits
	facts     map[int]map[string]Fact
	rules     []originRule
	factCount int
}

func newWorld(limits RunLimits) *world {
	return &world{limits: limits, facts: map[int]map[string]Fact{}}
}

// addFact inserts a fact into an origin, deduplicating by rendered
// form. Reports whether the fact was new and enforces MaxFacts.
func (w *world) addFact(origin int, fact Fact) (bool, error) {
	bucket := w.facts[origin]
	if bucket == nil {
		bucket = map[string]Fact{}
		w.facts[origin] = bucket
	}
	key := fact.String()
	if _, exists := bucket[key]; exists {
		return false, nil
	}
	if w.factCount >= w.limits.MaxFacts {
		return false, ErrTooManyFacts
	}
	bucket[key] = fact
	w.factCount++
	return true, nil
}

func (w *world) addRule(origin int, rule Rule) {
	w.rules = append(w.rules, originRule{origin: origin, rule: rule})
}

// visibleOrigins returns the origins whose facts a block may read:
// the authority block, the authorizer, and the block itself.
func visibleOrigins(origin int) []int {
	if origin == OriginAuthority || origin == OriginAuthorizer {
		return []int{OriginAuthority, OriginAuthorizer}
	}
	return []int{OriginAuthority, OriginAuthorizer, origin}
}

// run saturates the world: apply every rule until no new facts appear
// or a limit trips.
func (w *world) run() error {
	start := time.Now()
	for iteration := 0; ; iteration++ {
		if iteration >= w.limits.MaxIterations {
			return ErrTooManyIterations
		}
		if time.Since(start) > w.limits.MaxTime {
			return ErrEvaluationTimeout
		}

		added := false
		for _, bound := range w.rules {
			derived, err := w.deriveRule(visibleOrigins(bound.origin), bound.rule)
			if err != nil {
				return err
			}
			for _, fact := range derived {
				isNew, err := w.addFact(bound.origin, fact)
				if err != nil {
					return err
				}
				if isNew {
					added = true
				}
			}
		}
		if !added {
			return nil
		}
	}
}

// deriveRule returns every head instantiation the rule produces from
// the facts visible in origins.
func (w *world) deriveRule(origins []int, rule Rule) ([]Fact, error) {
	var derived []Fact
	err := w.eachMatch(origins, rule.Body, rule.Expressions, map[string]Term{}, func(binding map[string]Term) error {
		head := Predicate{Name: rule.Head.Name, Terms: make([]Term, len(rule.Head.Terms))}
		for i, term := range rule.Head.Terms {
			resolved, ok := resolveTerm(term, binding)
			if !ok {
				return fmt.Errorf("datalog: head variable $%s of rule %q is not bound by its body", term.Str, rule.Head.Name)
			}
			head.Terms[i] = resolved
		}
		derived = append(derived, Fact{Predicate: head})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return derived, nil
}

// anyMatch reports whether the body matches at least once.
func (w *world) anyMatch(origins []int, query Rule) (bool, error) {
	matched := false
	err := w.eachMatch(origins, query.Body, query.Expressions, map[string]Term{}, func(map[string]Term) error {
		matched = true
		return errStopMatching
	})
	if err != nil && !errors.Is(err, errStopMatching) {
		return false, err
	}
	return matched, nil
}

// errStopMatching aborts eachMatch early once a single match suffices.
var errStopMatching = errors.New("datalog: stop matching")

// eachMatch enumerates bindings that satisfy body predicates and
// expressions, invoking yield for each complete binding.
func (w *world) eachMatch(origins []int, body []Predicate, expressions []Expression, binding map[string]Term, yield func(map[string]Term) error) error {
	if len(body) == 0 {
		holds, err := evaluateExpressions(expressions, binding)
		if err != nil {
			return err
		}
		if !holds {
			return nil
		}
		return yield(binding)
	}

	predicate, rest := body[0], body[1:]
	for _, origin := range origins {
		for _, fact := range w.facts[origin] {
			extended, ok := unify(predicate, fact.Predicate, binding)
			if !ok {
				continue
			}
			if err := w.eachMatch(origins, rest, expressions, extended, yield); err != nil {
				return err
			}
		}
	}
	return nil
}

// unify matches a body predicate against a fact, extending the
// binding. Returns the extended binding (a copy when new variables
// bind) and whether unification succeeded.
func unify(pattern, fact Predicate, binding map[string]Term) (map[string]Term, bool) {
	if pattern.Name != fact.Name || len(pattern.Terms) != len(fact.Terms) {
		return nil, false
	}
	extended := binding
	copied := false
	for i, term := range pattern.Terms {
		factTerm := fact.Terms[i]
		if term.Kind == TermVariable {
			if bound, ok := extended[term.Str]; ok {
				if !bound.Equal(factTerm) {
					return nil, false
				}
				continue
			}
			if !copied {
				fresh := make(map[string]Term, len(extended)+1)
				for name, value := range extended {
					fresh[name] = value
				}
				extended = fresh
				copied = true
			}
			extended[term.Str] = factTerm
			continue
		}
		if !term.Equal(factTerm) {
			return nil, false
		}
	}
	return extended, true
}

// resolveTerm substitutes a variable through the binding. Ground terms
// pass through unchanged.
func resolveTerm(term Term, binding map[string]Term) (Term, bool) {
	if term.Kind == TermVariable {
		bound, ok := binding[term.Str]
		return bound, ok
	}
	if term.Kind == TermParameter {
		return Term{}, false
	}
	return term, true
}

func evaluateExpressions(expressions []Expression, binding map[string]Term) (bool, error) {
	for _, expression := range expressions {
		holds, err := evaluateExpression(expression, binding)
		if err != nil {
			return false, err
		}
		if !holds {
			return false, nil
		}
	}
	return true, nil
}

func evaluateExpression(expression Expression, binding map[string]Term) (bool, error) {
	left, ok := resolveTerm(expression.Left, binding)
	if !ok {
		return false, fmt.Errorf("datalog: unbound variable $%s in expression", expression.Left.Str)
	}
	if expression.Op == OpLiteral {
		if left.Kind != TermBool {
			return false, fmt.Errorf("datalog: literal expression must be boolean")
		}
		return left.Bool, nil
	}
	right, ok := resolveTerm(expression.Right, binding)
	if !ok {
		return false, fmt.Errorf("datalog: unbound variable $%s in expression", expression.Right.Str)
	}

	if left.Kind != right.Kind {
		return false, fmt.Errorf("datalog: type mismatch in expression %s", Expression{Left: left, Op: expression.Op, Right: right})
	}

	switch expression.Op {
	case OpEqual:
		return left.Equal(right), nil
	case OpNotEqual:
		return !left.Equal(right), nil
	}

	// Ordering operators.
	var comparison int
	switch left.Kind {
	case TermInteger, TermDate:
		switch {
		case left.Int < right.Int:
			comparison = -1
		case left.Int > right.Int:
			comparison = 1
		}
	case TermString:
		switch {
		case left.Str < right.Str:
			comparison = -1
		case left.Str > right.Str:
			comparison = 1
		}
	case TermBytes:
		comparison = bytes.Compare(left.Bytes, right.Bytes)
	default:
		return false, fmt.Errorf("datalog: %s does not support ordering comparison", left)
	}

	switch expression.Op {
	case OpLessThan:
		return comparison < 0, nil
	case OpLessOrEqual:
		return comparison <= 0, nil
	case OpGreaterThan:
		return comparison > 0, nil
	case OpGreaterOrEqual:
		return comparison >= 0, nil
	}
	return false, fmt.Errorf("datalog: unknown operator %v", expression.Op)
}
