// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package datalog

import (
	"fmt"
	"strings"
)

// Predicate is a named tuple of terms, e.g. right("file1", "read").
type Predicate struct {
	Name  string `cbor:"1,keyasint"`
	Terms []Term `cbor:"2,keyasint,omitempty"`
}

// Fact is a predicate whose terms are all ground.
type Fact struct {
	Predicate Predicate `cbor:"1,keyasint"`
}

// ExprOp is a comparison operator in a rule body expression.
type ExprOp uint8

const (
	OpLessThan ExprOp = iota
	OpLessOrEqual
	OpGreaterThan
	OpGreaterOrEqual
	OpEqual
	OpNotEqual

	// OpLiteral marks a bare boolean literal in a body ("true" or
	// "false"); only Left is meaningful.
	OpLiteral
)

// String returns the source spelling of the operator.
func (o ExprOp) String() string {
	switch o {
	case OpLessThan:
		return "<"
	case OpLessOrEqual:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterOrEqual:
		return ">="
	case OpEqual:
		return "=="
	case OpNotEqual:
		return "!="
	default:
		return "?"
	}
}

// Expression is a binary comparison constraint in a rule body, e.g.
// $age >= 18 or $time <= 2025-04-01T00:00:00Z.
type Expression struct {
	Left  Term   `cbor:"1,keyasint"`
	Op    ExprOp `cbor:"2,keyasint"`
	Right Term   `cbor:"3,keyasint,omitempty"`
}

// Rule derives its head when every body predicate matches and every
// expression holds.
type Rule struct {
	Head        Predicate    `cbor:"1,keyasint"`
	Body        []Predicate  `cbor:"2,keyasint,omitempty"`
	Expressions []Expression `cbor:"3,keyasint,omitempty"`
}

// Check is a condition a token block or authorizer imposes. It passes
// when at least one of its queries matches ("or" alternatives).
type Check struct {
	Queries []Rule `cbor:"1,keyasint"`
}

// Policy is an authorizer-side allow/deny decision rule. Policies are
// evaluated in order; the first whose queries match decides.
type Policy struct {
	Allow   bool   `cbor:"1,keyasint"`
	Queries []Rule `cbor:"2,keyasint"`
}

// Program is the result of parsing a datalog source text.
type Program struct {
	Facts    []Fact
	Rules    []Rule
	Checks   []Check
	Policies []Policy
}

func (p Predicate) String() string {
	parts := make([]string, len(p.Terms))
	for i, term := range p.Terms {
		parts[i] = term.String()
	}
	return p.Name + "(" + strings.Join(parts, ", ") + ")"
}

func (f Fact) String() string { return f.Predicate.String() }

func (e Expression) String() string {
	if e.Op == OpLiteral {
		return e.Left.String()
	}
	return fmt.Sprintf("%s %s %s", e.Left, e.Op, e.Right)
}

// bodyString renders the body of a rule without its head.
func (r Rule) bodyString() string {
	parts := make([]string, 0, len(r.Body)+len(r.Expressions))
	for _, predicate := range r.Body {
		parts = append(parts, predicate.String())
	}
	for _, expression := range r.Expressions {
		parts = append(parts, expression.String())
	}
	if len(parts) == 0 {
		return "true"
	}
	return strings.Join(parts, ", ")
}

func (r Rule) String() string {
	return r.Head.String() + " <- " + r.bodyString()
}

func (c Check) String() string {
	alternatives := make([]string, len(c.Queries))
	for i, query := range c.Queries {
		alternatives[i] = query.bodyString()
	}
	return "check if " + strings.Join(alternatives, " or ")
}

func (p Policy) String() string {
	keyword := "deny"
	if p.Allow {
		keyword = "allow"
	}
	alternatives := make([]string, len(p.Queries))
	for i, query := range p.Queries {
		alternatives[i] = query.bodyString()
	}
	return keyword + " if " + strings.Join(alternatives, " or ")
}

// bindTerm substitutes a parameter term with its bound value.
func bindTerm(term Term, params map[string]Term) Term {
	if term.Kind == TermParameter {
		if value, ok := params[term.Str]; ok {
			return value
		}
	}
	return term
}

func bindPredicate(predicate Predicate, params map[string]Term) Predicate {
	bound := Predicate{Name: predicate.Name, Terms: make([]Term, len(predicate.Terms))}
	for i, term := range predicate.Terms {
		bound.Terms[i] = bindTerm(term, params)
	}
	return bound
}

func bindRule(rule Rule, params map[string]Term) Rule {
	bound := Rule{Head: bindPredicate(rule.Head, params)}
	for _, predicate := range rule.Body {
		bound.Body = append(bound.Body, bindPredicate(predicate, params))
	}
	for _, expression := range rule.Expressions {
		bound.Expressions = append(bound.Expressions, Expression{
			Left:  bindTerm(expression.Left, params),
			Op:    expression.Op,
			Right: bindTerm(expression.Right, params),
		})
	}
	return bound
}

// Bind substitutes {name} parameters throughout the program. Unknown
// parameter names in params are ignored (shadowing is the caller's
// concern); parameters left unbound are reported by CheckBound.
func (p *Program) Bind(params map[string]Term) {
	for i, fact := range p.Facts {
		p.Facts[i].Predicate = bindPredicate(fact.Predicate, params)
	}
	for i, rule := range p.Rules {
		p.Rules[i] = bindRule(rule, params)
	}
	for i, check := range p.Checks {
		for j, query := range check.Queries {
			p.Checks[i].Queries[j] = bindRule(query, params)
		}
	}
	for i, policy := range p.Policies {
		for j, query := range policy.Queries {
			p.Policies[i].Queries[j] = bindRule(query, params)
		}
	}
}

// CheckBound returns an error naming the first parameter that is still
// unsubstituted. A program with unbound parameters cannot be evaluated
// or embedded in a block.
func (p *Program) CheckBound() error {
	var unbound string
	scan := func(term Term) {
		if unbound == "" && term.Kind == TermParameter {
			unbound = term.Str
		}
	}
	scanPredicate := func(predicate Predicate) {
		for _, term := range predicate.Terms {
			scan(term)
		}
	}
	scanRule := func(rule Rule) {
		scanPredicate(rule.Head)
		for _, predicate := range rule.Body {
			scanPredicate(predicate)
		}
		for _, expression := range rule.Expressions {
			scan(expression.Left)
			scan(expression.Right)
		}
	}
	for _, fact := range p.Facts {
		scanPredicate(fact.Predicate)
	}
	for _, rule := range p.Rules {
		scanRule(rule)
	}
	for _, check := range p.Checks {
		for _, query := range check.Queries {
			scanRule(query)
		}
	}
	for _, policy := range p.Policies {
		for _, query := range policy.Queries {
			scanRule(query)
		}
	}
	if unbound != "" {
		return fmt.Errorf("datalog: parameter {%s} is not bound", unbound)
	}
	return nil
}
