// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package datalog

import (
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	authorizer := authorizerFromSource(t, `
		user("alice");
		right($r) <- resource($r);
		check if user($u);
		allow if user("alice");
		deny if true;
	`)
	authorizer.SetBlocks([]BlockCode{
		{
			Facts:   []Fact{{Predicate: Predicate{Name: "service", Terms: []Term{StringTerm("api")}}}},
			Context: "authority context",
		},
		{External: "ed25519/aabbcc"},
	})

	serialized, err := authorizer.Snapshot().Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	snapshot, err := ParseSnapshot(serialized)
	if err != nil {
		t.Fatalf("ParseSnapshot: %v", err)
	}
	if len(snapshot.Facts) != 1 || len(snapshot.Rules) != 1 || len(snapshot.Checks) != 1 {
		t.Errorf("snapshot = %+v", snapshot)
	}
	if len(snapshot.Policies) != 2 || !snapshot.Policies[0].Allow {
		t.Errorf("policies = %+v", snapshot.Policies)
	}
	if len(snapshot.Blocks) != 2 || snapshot.Blocks[0].Context != "authority context" {
		t.Errorf("blocks = %+v", snapshot.Blocks)
	}
	if snapshot.Blocks[1].External != "ed25519/aabbcc" {
		t.Errorf("external = %q", snapshot.Blocks[1].External)
	}

	// The rebuilt authorizer reaches the same decision.
	result, err := snapshot.Authorizer().Authorize(DefaultRunLimits)
	if err != nil {
		t.Fatalf("Authorize after round trip: %v", err)
	}
	if result.Decision != Allow {
		t.Errorf("Decision = %v, want Allow", result.Decision)
	}
}

func TestPoliciesSnapshotOmitsBlocks(t *testing.T) {
	authorizer := authorizerFromSource(t, `allow if user("alice");`)
	authorizer.SetBlocks([]BlockCode{{Context: "should not appear"}})

	serialized, err := authorizer.PoliciesSnapshot().Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	snapshot, err := ParseSnapshot(serialized)
	if err != nil {
		t.Fatalf("ParseSnapshot: %v", err)
	}
	if len(snapshot.Blocks) != 0 {
		t.Errorf("policies snapshot carries %d blocks, want 0", len(snapshot.Blocks))
	}
	if len(snapshot.Policies) != 1 {
		t.Errorf("policies = %+v", snapshot.Policies)
	}
}

func TestParseSnapshotRejectsGarbage(t *testing.T) {
	if _, err := ParseSnapshot([]byte("not a snapshot")); err == nil {
		t.Error("ParseSnapshot accepted garbage")
	}
	if _, err := ParseSnapshotBase64("!!!not base64!!!"); err == nil {
		t.Error("ParseSnapshotBase64 accepted garbage")
	}
}

func TestBlockCodeSource(t *testing.T) {
	program := mustParse(t, `
		user("alice");
		right($r) <- resource($r);
		check if user($u);
	`)
	block := BlockCode{Facts: program.Facts, Rules: program.Rules, Checks: program.Checks}

	want := "user(\"alice\");\nright($r) <- resource($r);\ncheck if user($u);"
	if got := block.Source(); got != want {
		t.Errorf("Source() = %q, want %q", got, want)
	}
}
