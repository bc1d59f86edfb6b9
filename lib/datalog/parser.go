// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package datalog

import (
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode"
)

// ErrParse wraps every syntax error from this file so callers can
// distinguish bad datalog source from other failures.
var ErrParse = errors.New("datalog: parse error")

type tokenKind uint8

const (
	tokenIdent tokenKind = iota
	tokenVariable
	tokenParameter
	tokenString
	tokenInteger
	tokenDate
	tokenBytes
	tokenLeftParen
	tokenRightParen
	tokenComma
	tokenSemicolon
	tokenArrow
	tokenOp
	tokenEOF
)

type token struct {
	kind  tokenKind
	text  string // ident name, variable name, operator spelling
	str   string // string literal value
	num   int64  // integer or date value
	bytes []byte // hex literal value
	line  int
}

type lexer struct {
	source string
	pos    int
	line   int
}

func (l *lexer) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrParse, l.line, fmt.Sprintf(format, args...))
}

// dateChars is the character set a numeric-leading token may contain.
// It covers both integers and RFC3339 timestamps.
func isDateChar(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '+' || c == ':' || c == '.' || c == 'T' || c == 'Z':
		return true
	}
	return false
}

func isIdentStart(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c))
}

func isIdentChar(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.source) {
		c := l.source[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '/' && l.pos+1 < len(l.source) && l.source[l.pos+1] == '/':
			for l.pos < len(l.source) && l.source[l.pos] != '\n' {
				l.pos++
			}
		default:
			goto scan
		}
	}
	return token{kind: tokenEOF, line: l.line}, nil

scan:
	start := l.pos
	c := l.source[l.pos]

	switch c {
	case '(':
		l.pos++
		return token{kind: tokenLeftParen, line: l.line}, nil
	case ')':
		l.pos++
		return token{kind: tokenRightParen, line: l.line}, nil
	case ',':
		l.pos++
		return token{kind: tokenComma, line: l.line}, nil
	case ';':
		l.pos++
		return token{kind: tokenSemicolon, line: l.line}, nil
	case '$':
		l.pos++
		for l.pos < len(l.source) && isIdentChar(l.source[l.pos]) {
			l.pos++
		}
		if l.pos == start+1 {
			return token{}, l.errorf("empty variable name")
		}
		return token{kind: tokenVariable, text: l.source[start+1 : l.pos], line: l.line}, nil
	case '{':
		l.pos++
		for l.pos < len(l.source) && isIdentChar(l.source[l.pos]) {
			l.pos++
		}
		if l.pos >= len(l.source) || l.source[l.pos] != '}' {
			return token{}, l.errorf("unterminated parameter")
		}
		name := l.source[start+1 : l.pos]
		l.pos++
		if name == "" {
			return token{}, l.errorf("empty parameter name")
		}
		return token{kind: tokenParameter, text: name, line: l.line}, nil
	case '"':
		l.pos++
		for l.pos < len(l.source) {
			if l.source[l.pos] == '\\' {
				l.pos += 2
				continue
			}
			if l.source[l.pos] == '"' {
				raw := l.source[start : l.pos+1]
				l.pos++
				value, err := strconv.Unquote(raw)
				if err != nil {
					return token{}, l.errorf("invalid string literal %s", raw)
				}
				return token{kind: tokenString, str: value, line: l.line}, nil
			}
			l.pos++
		}
		return token{}, l.errorf("unterminated string literal")
	case '<':
		if l.pos+1 < len(l.source) && l.source[l.pos+1] == '-' {
			l.pos += 2
			return token{kind: tokenArrow, line: l.line}, nil
		}
		if l.pos+1 < len(l.source) && l.source[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokenOp, text: "<=", line: l.line}, nil
		}
		l.pos++
		return token{kind: tokenOp, text: "<", line: l.line}, nil
	case '>':
		if l.pos+1 < len(l.source) && l.source[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokenOp, text: ">=", line: l.line}, nil
		}
		l.pos++
		return token{kind: tokenOp, text: ">", line: l.line}, nil
	case '=':
		if l.pos+1 < len(l.source) && l.source[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokenOp, text: "==", line: l.line}, nil
		}
		return token{}, l.errorf("unexpected '='; comparison is spelled '=='")
	case '!':
		if l.pos+1 < len(l.source) && l.source[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokenOp, text: "!=", line: l.line}, nil
		}
		return token{}, l.errorf("unexpected '!'")
	}

	// Numeric-leading token: integer, negative integer, or RFC3339 date.
	if (c >= '0' && c <= '9') || (c == '-' && l.pos+1 < len(l.source) && l.source[l.pos+1] >= '0' && l.source[l.pos+1] <= '9') {
		l.pos++
		for l.pos < len(l.source) && isDateChar(l.source[l.pos]) {
			l.pos++
		}
		text := l.source[start:l.pos]
		if value, err := strconv.ParseInt(text, 10, 64); err == nil {
			return token{kind: tokenInteger, num: value, line: l.line}, nil
		}
		if when, err := time.Parse(time.RFC3339, text); err == nil {
			return token{kind: tokenDate, num: when.Unix(), line: l.line}, nil
		}
		return token{}, l.errorf("invalid numeric or date literal %q", text)
	}

	if isIdentStart(c) {
		l.pos++
		for l.pos < len(l.source) && isIdentChar(l.source[l.pos]) {
			l.pos++
		}
		name := l.source[start:l.pos]
		// hex:<digits> byte-string literal.
		if name == "hex" && l.pos < len(l.source) && l.source[l.pos] == ':' {
			l.pos++
			hexStart := l.pos
			for l.pos < len(l.source) && isHexDigit(l.source[l.pos]) {
				l.pos++
			}
			decoded, err := decodeHex(l.source[hexStart:l.pos])
			if err != nil {
				return token{}, l.errorf("invalid hex literal")
			}
			return token{kind: tokenBytes, bytes: decoded, line: l.line}, nil
		}
		return token{kind: tokenIdent, text: name, line: l.line}, nil
	}

	return token{}, l.errorf("unexpected character %q", string(rune(c)))
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func decodeHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex")
	}
	decoded := make([]byte, len(s)/2)
	for i := 0; i < len(decoded); i++ {
		high, low := hexValue(s[2*i]), hexValue(s[2*i+1])
		decoded[i] = high<<4 | low
	}
	return decoded, nil
}

func hexValue(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

type parser struct {
	lexer   lexer
	current token
}

func (p *parser) advance() error {
	next, err := p.lexer.next()
	if err != nil {
		return err
	}
	p.current = next
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrParse, p.current.line, fmt.Sprintf(format, args...))
}

// Parse parses a full datalog source text: facts, rules, checks, and
// policies, each terminated by a semicolon.
func Parse(source string) (*Program, error) {
	p := &parser{lexer: lexer{source: source, line: 1}}
	if err := p.advance(); err != nil {
		return nil, err
	}

	program := &Program{}
	for p.current.kind != tokenEOF {
		if err := p.statement(program); err != nil {
			return nil, err
		}
		// Statement separator. The final semicolon is optional.
		if p.current.kind == tokenSemicolon {
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else if p.current.kind != tokenEOF {
			return nil, p.errorf("expected ';' between statements")
		}
	}
	return program, nil
}

// ParseBlock parses datalog destined for a token block. Policies are
// authorizer-only and rejected here.
func ParseBlock(source string) (*Program, error) {
	program, err := Parse(source)
	if err != nil {
		return nil, err
	}
	if len(program.Policies) > 0 {
		return nil, fmt.Errorf("%w: allow/deny policies are not permitted in a token block", ErrParse)
	}
	return program, nil
}

// ParseRule parses a single rule, as accepted by --query.
func ParseRule(source string) (*Rule, error) {
	p := &parser{lexer: lexer{source: source, line: 1}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.current.kind != tokenIdent {
		return nil, p.errorf("expected rule head")
	}
	head, err := p.predicate()
	if err != nil {
		return nil, err
	}
	if p.current.kind != tokenArrow {
		return nil, p.errorf("expected '<-' after rule head")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	rule := Rule{Head: head}
	if err := p.ruleBody(&rule); err != nil {
		return nil, err
	}
	if p.current.kind == tokenSemicolon {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.current.kind != tokenEOF {
		return nil, p.errorf("unexpected trailing input after rule")
	}
	return &rule, nil
}

func (p *parser) statement(program *Program) error {
	if p.current.kind != tokenIdent {
		return p.errorf("expected a fact, rule, check, or policy")
	}

	switch p.current.text {
	case "check":
		if err := p.advance(); err != nil {
			return err
		}
		if p.current.kind != tokenIdent || p.current.text != "if" {
			return p.errorf("expected 'if' after 'check'")
		}
		if err := p.advance(); err != nil {
			return err
		}
		queries, err := p.alternatives("query")
		if err != nil {
			return err
		}
		program.Checks = append(program.Checks, Check{Queries: queries})
		return nil

	case "allow", "deny":
		allow := p.current.text == "allow"
		if err := p.advance(); err != nil {
			return err
		}
		if p.current.kind != tokenIdent || p.current.text != "if" {
			return p.errorf("expected 'if' after policy keyword")
		}
		if err := p.advance(); err != nil {
			return err
		}
		queries, err := p.alternatives("policy")
		if err != nil {
			return err
		}
		program.Policies = append(program.Policies, Policy{Allow: allow, Queries: queries})
		return nil
	}

	// Fact or rule: predicate, optionally followed by <- body.
	head, err := p.predicate()
	if err != nil {
		return err
	}
	if p.current.kind == tokenArrow {
		if err := p.advance(); err != nil {
			return err
		}
		rule := Rule{Head: head}
		if err := p.ruleBody(&rule); err != nil {
			return err
		}
		program.Rules = append(program.Rules, rule)
		return nil
	}

	for _, term := range head.Terms {
		if term.Kind == TermVariable {
			return p.errorf("fact %s contains variable $%s", head.Name, term.Str)
		}
	}
	program.Facts = append(program.Facts, Fact{Predicate: head})
	return nil
}

// alternatives parses one or more rule bodies separated by 'or'. The
// synthesized head carries the statement kind for display only.
func (p *parser) alternatives(headName string) ([]Rule, error) {
	var queries []Rule
	for {
		query := Rule{Head: Predicate{Name: headName}}
		if err := p.ruleBody(&query); err != nil {
			return nil, err
		}
		queries = append(queries, query)
		if p.current.kind == tokenIdent && p.current.text == "or" {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		return queries, nil
	}
}

// ruleBody parses a comma-separated list of predicates, expressions,
// and boolean literals.
func (p *parser) ruleBody(rule *Rule) error {
	for {
		if err := p.bodyElement(rule); err != nil {
			return err
		}
		if p.current.kind == tokenComma {
			if err := p.advance(); err != nil {
				return err
			}
			continue
		}
		return nil
	}
}

func (p *parser) bodyElement(rule *Rule) error {
	// Bare boolean literal.
	if p.current.kind == tokenIdent && (p.current.text == "true" || p.current.text == "false") {
		literal := p.current.text == "true"
		if err := p.advance(); err != nil {
			return err
		}
		rule.Expressions = append(rule.Expressions, Expression{Left: BoolTerm(literal), Op: OpLiteral})
		return nil
	}

	// Predicate: ident followed by '('.
	if p.current.kind == tokenIdent {
		predicate, err := p.predicate()
		if err != nil {
			return err
		}
		rule.Body = append(rule.Body, predicate)
		return nil
	}

	// Expression: term op term.
	left, err := p.term()
	if err != nil {
		return err
	}
	if p.current.kind != tokenOp {
		return p.errorf("expected comparison operator")
	}
	op, err := parseOp(p.current.text)
	if err != nil {
		return p.errorf("%v", err)
	}
	if err := p.advance(); err != nil {
		return err
	}
	right, err := p.term()
	if err != nil {
		return err
	}
	rule.Expressions = append(rule.Expressions, Expression{Left: left, Op: op, Right: right})
	return nil
}

func parseOp(spelling string) (ExprOp, error) {
	switch spelling {
	case "<":
		return OpLessThan, nil
	case "<=":
		return OpLessOrEqual, nil
	case ">":
		return OpGreaterThan, nil
	case ">=":
		return OpGreaterOrEqual, nil
	case "==":
		return OpEqual, nil
	case "!=":
		return OpNotEqual, nil
	default:
		return 0, fmt.Errorf("unknown operator %q", spelling)
	}
}

func (p *parser) predicate() (Predicate, error) {
	name := p.current.text
	if err := p.advance(); err != nil {
		return Predicate{}, err
	}
	if p.current.kind != tokenLeftParen {
		return Predicate{}, p.errorf("expected '(' after predicate name %q", name)
	}
	if err := p.advance(); err != nil {
		return Predicate{}, err
	}

	predicate := Predicate{Name: name}
	if p.current.kind == tokenRightParen {
		if err := p.advance(); err != nil {
			return Predicate{}, err
		}
		return predicate, nil
	}
	for {
		term, err := p.term()
		if err != nil {
			return Predicate{}, err
		}
		predicate.Terms = append(predicate.Terms, term)
		switch p.current.kind {
		case tokenComma:
			if err := p.advance(); err != nil {
				return Predicate{}, err
			}
		case tokenRightParen:
			if err := p.advance(); err != nil {
				return Predicate{}, err
			}
			return predicate, nil
		default:
			return Predicate{}, p.errorf("expected ',' or ')' in predicate %q", name)
		}
	}
}

func (p *parser) term() (Term, error) {
	var term Term
	switch p.current.kind {
	case tokenVariable:
		term = Var(p.current.text)
	case tokenParameter:
		term = Parameter(p.current.text)
	case tokenString:
		term = StringTerm(p.current.str)
	case tokenInteger:
		term = IntTerm(p.current.num)
	case tokenDate:
		term = Term{Kind: TermDate, Int: p.current.num}
	case tokenBytes:
		term = BytesTerm(p.current.bytes)
	case tokenIdent:
		if p.current.text != "true" && p.current.text != "false" {
			return Term{}, p.errorf("expected a term, got %q", p.current.text)
		}
		term = BoolTerm(p.current.text == "true")
	default:
		return Term{}, p.errorf("expected a term")
	}
	if err := p.advance(); err != nil {
		return Term{}, err
	}
	return term, nil
}
