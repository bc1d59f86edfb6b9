// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package datalog

import (
	"errors"
	"testing"
	"time"
)

func authorizerFromSource(t *testing.T, source string) *Authorizer {
	t.Helper()
	program, err := Parse(source)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	authorizer := NewAuthorizer()
	authorizer.AddProgram(program)
	return authorizer
}

func TestAuthorizeAllow(t *testing.T) {
	authorizer := authorizerFromSource(t, `
		user("alice");
		allow if user("alice");
	`)

	result, err := authorizer.Authorize(DefaultRunLimits)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if result.Decision != Allow {
		t.Fatalf("Decision = %v, want Allow (result: %+v)", result.Decision, result)
	}
	if result.PolicyIndex != 0 {
		t.Errorf("PolicyIndex = %d, want 0", result.PolicyIndex)
	}
	if err := result.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestAuthorizeDenyPolicy(t *testing.T) {
	authorizer := authorizerFromSource(t, `
		deny if true;
		allow if true;
	`)

	result, err := authorizer.Authorize(DefaultRunLimits)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if result.Decision != Deny {
		t.Error("deny policy listed first should win")
	}
	if result.PolicyIndex != 0 {
		t.Errorf("PolicyIndex = %d, want 0", result.PolicyIndex)
	}
	if err := result.Err(); err == nil {
		t.Error("Err() = nil for a denial")
	}
}

func TestAuthorizeNoPolicyMatches(t *testing.T) {
	authorizer := authorizerFromSource(t, `allow if user("bob");`)

	result, err := authorizer.Authorize(DefaultRunLimits)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if result.Decision != Deny || result.PolicyIndex != -1 {
		t.Errorf("result = %+v, want deny with no policy", result)
	}
}

func TestRuleDerivation(t *testing.T) {
	authorizer := authorizerFromSource(t, `
		resource("file1");
		resource("file2");
		right($r, "read") <- resource($r);
		allow if right("file2", "read");
	`)

	result, err := authorizer.Authorize(DefaultRunLimits)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if result.Decision != Allow {
		t.Errorf("derived fact did not satisfy the policy: %+v", result)
	}
}

func TestFailedCheckDenies(t *testing.T) {
	authorizer := authorizerFromSource(t, `
		check if user("bob");
		allow if true;
	`)

	result, err := authorizer.Authorize(DefaultRunLimits)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if result.Decision != Deny {
		t.Error("failed check must deny even when an allow policy matches")
	}
	if len(result.FailedChecks) != 1 || result.FailedChecks[0].Block != OriginAuthorizer {
		t.Errorf("FailedChecks = %+v", result.FailedChecks)
	}
}

func TestBlockChecksSeeOwnFacts(t *testing.T) {
	// An attenuation block's facts feed its own checks but stay out
	// of the trusted scope used by policies.
	authorizer := authorizerFromSource(t, `allow if claimed("admin");`)
	authorizer.SetBlocks([]BlockCode{
		{Facts: []Fact{{Predicate: Predicate{Name: "service", Terms: []Term{StringTerm("api")}}}}},
		{
			Facts: []Fact{{Predicate: Predicate{Name: "claimed", Terms: []Term{StringTerm("admin")}}}},
			Checks: []Check{{Queries: []Rule{{
				Head: Predicate{Name: "query"},
				Body: []Predicate{{Name: "claimed", Terms: []Term{StringTerm("admin")}}},
			}}}},
		},
	})

	result, err := authorizer.Authorize(DefaultRunLimits)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if len(result.FailedChecks) != 0 {
		t.Errorf("block check failed despite its own fact: %+v", result.FailedChecks)
	}
	// The policy must not see the attenuation block's fact.
	if result.Decision != Deny {
		t.Error("policy saw an untrusted block fact")
	}
}

func TestExpirationCheck(t *testing.T) {
	expiry := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	authorizer := authorizerFromSource(t, `allow if true;`)
	authorizer.SetBlocks([]BlockCode{{
		Checks: []Check{{Queries: []Rule{{
			Head: Predicate{Name: "query"},
			Body: []Predicate{{Name: "time", Terms: []Term{Var("time")}}},
			Expressions: []Expression{{
				Left:  Var("time"),
				Op:    OpLessOrEqual,
				Right: DateTerm(expiry),
			}},
		}}}},
	}})

	// Before expiry: check passes.
	authorizer.AddFact(Fact{Predicate: Predicate{Name: "time", Terms: []Term{DateTerm(expiry.Add(-time.Hour))}}})
	result, err := authorizer.Authorize(DefaultRunLimits)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if result.Decision != Allow {
		t.Errorf("token denied before expiry: %+v", result)
	}

	// After expiry: check fails.
	late := authorizerFromSource(t, `allow if true;`)
	late.SetBlocks(authorizer.blocks)
	late.AddFact(Fact{Predicate: Predicate{Name: "time", Terms: []Term{DateTerm(expiry.Add(time.Hour))}}})
	result, err = late.Authorize(DefaultRunLimits)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if result.Decision != Deny || len(result.FailedChecks) != 1 {
		t.Errorf("expired token not denied: %+v", result)
	}
}

func TestMaxIterations(t *testing.T) {
	// count chain, listed longest-dependency first so each saturation
	// pass derives exactly one new fact.
	authorizer := authorizerFromSource(t, `
		count(4) <- count(3);
		count(3) <- count(2);
		count(2) <- count(1);
		count(1) <- count(0);
		count(0);
		allow if true;
	`)

	limits := RunLimits{MaxFacts: 1000, MaxIterations: 2, MaxTime: time.Second}
	if _, err := authorizer.Authorize(limits); !errors.Is(err, ErrTooManyIterations) {
		t.Errorf("err = %v, want ErrTooManyIterations", err)
	}
}

func TestMaxFacts(t *testing.T) {
	authorizer := authorizerFromSource(t, `
		seed("a");
		seed("b");
		seed("c");
		pair($x, $y) <- seed($x), seed($y);
		allow if true;
	`)

	limits := RunLimits{MaxFacts: 5, MaxIterations: 100, MaxTime: time.Second}
	if _, err := authorizer.Authorize(limits); !errors.Is(err, ErrTooManyFacts) {
		t.Errorf("err = %v, want ErrTooManyFacts", err)
	}
}

func TestQueryTrustedAndAll(t *testing.T) {
	authorizer := authorizerFromSource(t, `allow if true;`)
	authorizer.SetBlocks([]BlockCode{
		{Facts: []Fact{{Predicate: Predicate{Name: "tag", Terms: []Term{StringTerm("authority")}}}}},
		{Facts: []Fact{{Predicate: Predicate{Name: "tag", Terms: []Term{StringTerm("attenuation")}}}}},
	})

	rule, err := ParseRule(`found($t) <- tag($t)`)
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}

	trusted, err := authorizer.Query(*rule, DefaultRunLimits, false)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(trusted) != 1 || trusted[0].String() != `found("authority")` {
		t.Errorf("trusted query = %v, want only the authority fact", trusted)
	}

	all, err := authorizer.Query(*rule, DefaultRunLimits, true)
	if err != nil {
		t.Fatalf("Query all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("query-all returned %d facts, want 2", len(all))
	}
}

func TestBytesOrdering(t *testing.T) {
	authorizer := authorizerFromSource(t, `
		digest(hex:0102);
		check if digest($d), $d < hex:0103;
		check if digest($d), $d >= hex:0102;
		allow if true;
	`)

	result, err := authorizer.Authorize(DefaultRunLimits)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if result.Decision != Allow {
		t.Fatalf("byte-wise ordering checks should pass (result: %+v)", result)
	}
}

func TestExpressionTypeMismatch(t *testing.T) {
	authorizer := authorizerFromSource(t, `
		age("not a number");
		check if age($a), $a >= 18;
		allow if true;
	`)

	if _, err := authorizer.Authorize(DefaultRunLimits); err == nil {
		t.Error("comparing a string to an integer should error, not silently deny")
	}
}
