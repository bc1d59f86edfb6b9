// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"errors"
	"testing"

	"github.com/crumbtools/biscuit/lib/datalog"
	"github.com/crumbtools/biscuit/lib/keys"
)

func TestParseParam(t *testing.T) {
	pair, err := keys.Generate(keys.Ed25519)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	tests := []struct {
		text string
		name string
		want datalog.Term
	}{
		{"user=alice", "user", datalog.StringTerm("alice")},
		{"user:string=alice", "user", datalog.StringTerm("alice")},
		{"count:integer=-12", "count", datalog.IntTerm(-12)},
		{"admin:bool=true", "admin", datalog.BoolTerm(true)},
		{"id:bytes=hex:00ff", "id", datalog.BytesTerm([]byte{0x00, 0xff})},
		{"key:pubkey=" + pair.Public.String(), "key", datalog.PublicKeyTerm(pair.Public.String())},
		// Values may themselves contain '='.
		{"query=a=b", "query", datalog.StringTerm("a=b")},
	}
	for _, test := range tests {
		name, term, err := ParseParam(test.text)
		if err != nil {
			t.Errorf("ParseParam(%q): %v", test.text, err)
			continue
		}
		if name != test.name || !term.Equal(test.want) {
			t.Errorf("ParseParam(%q) = %q, %v, want %q, %v", test.text, name, term, test.name, test.want)
		}
	}

	name, term, err := ParseParam("expiry:date=2026-04-01T00:00:00Z")
	if err != nil {
		t.Fatalf("ParseParam(date): %v", err)
	}
	if name != "expiry" || term.Kind != datalog.TermDate {
		t.Errorf("ParseParam(date) = %q, %v", name, term)
	}
}

func TestParseParamRejectsGarbage(t *testing.T) {
	invalid := []string{
		"noseparator",
		"=value",
		"count:integer=twelve",
		"id:bytes=00ff",
		"id:bytes=hex:zz",
		"key:pubkey=nothex",
		"user:decimal=1.5",
	}
	for _, text := range invalid {
		if _, _, err := ParseParam(text); !errors.Is(err, ErrInvalidParam) {
			t.Errorf("ParseParam(%q) = %v, want ErrInvalidParam", text, err)
		}
	}
}

func TestParseParams(t *testing.T) {
	bindings, err := ParseParams([]string{"user=alice", "count:integer=3", "user=bob"})
	if err != nil {
		t.Fatalf("ParseParams: %v", err)
	}
	if len(bindings) != 2 {
		t.Errorf("bindings = %v", bindings)
	}
	// The last binding for a name wins.
	if !bindings["user"].Equal(datalog.StringTerm("bob")) {
		t.Errorf("user = %v, want bob", bindings["user"])
	}

	empty, err := ParseParams(nil)
	if err != nil || empty != nil {
		t.Errorf("ParseParams(nil) = %v, %v", empty, err)
	}
}
