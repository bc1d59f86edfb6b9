// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crumbtools/biscuit/lib/datalog"
	"github.com/crumbtools/biscuit/lib/keys"
)

// Config holds the tool-wide defaults a user can pin in a config file.
// Flags override every field per invocation.
type Config struct {
	// KeyAlgorithm is the algorithm used when generating keys without
	// an explicit --key-algorithm flag. Values: ed25519, secp256r1.
	KeyAlgorithm string `yaml:"key_algorithm"`

	// Editor overrides $VISUAL/$EDITOR discovery for interactive
	// datalog input. May contain arguments ("code --wait").
	Editor string `yaml:"editor"`

	// RunLimits bounds authorization evaluation.
	RunLimits RunLimitsConfig `yaml:"run_limits"`
}

// RunLimitsConfig mirrors datalog.RunLimits in file-friendly form.
type RunLimitsConfig struct {
	MaxFacts      int    `yaml:"max_facts"`
	MaxIterations int    `yaml:"max_iterations"`
	MaxTime       string `yaml:"max_time"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		KeyAlgorithm: keys.Ed25519.String(),
		RunLimits: RunLimitsConfig{
			MaxFacts:      datalog.DefaultRunLimits.MaxFacts,
			MaxIterations: datalog.DefaultRunLimits.MaxIterations,
			MaxTime:       datalog.DefaultRunLimits.MaxTime.String(),
		},
	}
}

// Load loads configuration from the BISCUIT_CONFIG environment
// variable. Unset means the built-in defaults; the tool never hunts
// for a file on its own.
func Load() (*Config, error) {
	path := os.Getenv("BISCUIT_CONFIG")
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merged over
// the built-in defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if _, err := keys.ParseAlgorithm(c.KeyAlgorithm); err != nil {
		errs = append(errs, err)
	}
	if c.RunLimits.MaxFacts <= 0 {
		errs = append(errs, fmt.Errorf("run_limits.max_facts must be positive"))
	}
	if c.RunLimits.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("run_limits.max_iterations must be positive"))
	}
	if duration, err := time.ParseDuration(c.RunLimits.MaxTime); err != nil {
		errs = append(errs, fmt.Errorf("run_limits.max_time: %v", err))
	} else if duration <= 0 {
		errs = append(errs, fmt.Errorf("run_limits.max_time must be positive"))
	}

	return errors.Join(errs...)
}

// Algorithm returns the configured default key algorithm.
func (c *Config) Algorithm() (keys.Algorithm, error) {
	return keys.ParseAlgorithm(c.KeyAlgorithm)
}

// Limits returns the configured evaluation limits.
func (c *Config) Limits() (datalog.RunLimits, error) {
	duration, err := time.ParseDuration(c.RunLimits.MaxTime)
	if err != nil {
		return datalog.RunLimits{}, fmt.Errorf("config: run_limits.max_time: %w", err)
	}
	return datalog.RunLimits{
		MaxFacts:      c.RunLimits.MaxFacts,
		MaxIterations: c.RunLimits.MaxIterations,
		MaxTime:       duration,
	}, nil
}
