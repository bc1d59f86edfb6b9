// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crumbtools/biscuit/lib/keys"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "biscuit.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	algorithm, err := cfg.Algorithm()
	if err != nil {
		t.Fatalf("Algorithm: %v", err)
	}
	if algorithm != keys.Ed25519 {
		t.Errorf("Algorithm = %v, want Ed25519", algorithm)
	}
	limits, err := cfg.Limits()
	if err != nil {
		t.Fatalf("Limits: %v", err)
	}
	if limits.MaxFacts != 1000 || limits.MaxIterations != 100 || limits.MaxTime != 100*time.Millisecond {
		t.Errorf("Limits = %+v", limits)
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
key_algorithm: secp256r1
editor: "code --wait"
run_limits:
  max_facts: 5000
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	algorithm, err := cfg.Algorithm()
	if err != nil {
		t.Fatalf("Algorithm: %v", err)
	}
	if algorithm != keys.P256 {
		t.Errorf("Algorithm = %v, want P256", algorithm)
	}
	if cfg.Editor != "code --wait" {
		t.Errorf("Editor = %q", cfg.Editor)
	}

	// Unset fields keep their defaults.
	limits, err := cfg.Limits()
	if err != nil {
		t.Fatalf("Limits: %v", err)
	}
	if limits.MaxFacts != 5000 {
		t.Errorf("MaxFacts = %d, want 5000", limits.MaxFacts)
	}
	if limits.MaxIterations != 100 || limits.MaxTime != 100*time.Millisecond {
		t.Errorf("Limits = %+v", limits)
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	invalid := []string{
		"key_algorithm: rsa",
		"run_limits: {max_facts: -1}",
		"run_limits: {max_time: fast}",
		"key_algorithm: [unclosed",
	}
	for _, content := range invalid {
		if _, err := LoadFile(writeConfig(t, content)); err == nil {
			t.Errorf("LoadFile accepted %q", content)
		}
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile accepted a missing file")
	}
}

func TestLoadHonorsEnvironment(t *testing.T) {
	t.Setenv("BISCUIT_CONFIG", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load without BISCUIT_CONFIG: %v", err)
	}
	if cfg.KeyAlgorithm != keys.Ed25519.String() {
		t.Errorf("KeyAlgorithm = %q", cfg.KeyAlgorithm)
	}

	t.Setenv("BISCUIT_CONFIG", writeConfig(t, "editor: nano"))
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Editor != "nano" {
		t.Errorf("Editor = %q, want nano", cfg.Editor)
	}
}
