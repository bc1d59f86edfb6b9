// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "biscuit",
		Subcommands: []*Command{
			{
				Name: "version",
				Run: func(args []string) error {
					called = "version"
					return nil
				},
			},
			{
				Name: "seal",
				Run: func(args []string) error {
					called = "seal"
					return nil
				},
			},
		},
	}

	if err := root.Execute([]string{"seal"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "seal" {
		t.Errorf("dispatched to %q, want %q", called, "seal")
	}
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var raw bool
	var target string

	command := &Command{
		Name: "seal",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("seal", pflag.ContinueOnError)
			flagSet.BoolVar(&raw, "raw-output", false, "write binary output")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				target = args[0]
			}
			return nil
		},
	}

	if err := command.Execute([]string{"--raw-output", "token.bc"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !raw {
		t.Error("raw-output flag not applied")
	}
	if target != "token.bc" {
		t.Errorf("target = %q, want %q", target, "token.bc")
	}
}

func TestCommand_Execute_UnknownFlagSuggestion(t *testing.T) {
	command := &Command{
		Name: "seal",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("seal", pflag.ContinueOnError)
			flagSet.Bool("raw-output", false, "write binary output")
			flagSet.Bool("raw-input", false, "read binary input")
			return flagSet
		},
		Run: func(args []string) error { return nil },
	}

	err := command.Execute([]string{"--raw-otput"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "did you mean --raw-output") {
		t.Errorf("error = %q, want suggestion for '--raw-output'", errStr)
	}
	if !strings.Contains(errStr, "raw-otput") {
		t.Errorf("error = %q, should mention the bad flag", errStr)
	}
	if !strings.Contains(errStr, "--help") {
		t.Errorf("error = %q, should point to --help", errStr)
	}
}

func TestCommand_Execute_UnknownFlagNoSuggestion(t *testing.T) {
	command := &Command{
		Name: "seal",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("seal", pflag.ContinueOnError)
			flagSet.Bool("raw-output", false, "write binary output")
			return flagSet
		},
		Run: func(args []string) error { return nil },
	}

	err := command.Execute([]string{"--zzzzzzzzz"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %q, should not suggest for distant flag", err.Error())
	}
	if !strings.Contains(err.Error(), "--help") {
		t.Errorf("error = %q, should point to --help", err.Error())
	}
}

func TestCommand_Execute_UnknownSubcommandSuggestion(t *testing.T) {
	root := &Command{
		Name: "biscuit",
		Subcommands: []*Command{
			{Name: "generate"},
			{Name: "attenuate"},
			{Name: "inspect"},
		},
	}

	err := root.Execute([]string{"atenuate"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown subcommand")
	}
	if !strings.Contains(err.Error(), "did you mean \"attenuate\"") {
		t.Errorf("error = %q, want suggestion for 'attenuate'", err.Error())
	}
}

func TestCommand_Execute_HelpFlag(t *testing.T) {
	for _, helpArg := range []string{"-h", "--help", "help"} {
		t.Run(helpArg, func(t *testing.T) {
			root := &Command{
				Name:    "biscuit",
				Summary: "Biscuit token toolkit",
				Subcommands: []*Command{
					{Name: "generate", Summary: "Create a token"},
				},
			}

			if err := root.Execute([]string{helpArg}); err != nil {
				t.Errorf("Execute(%q) error: %v", helpArg, err)
			}
		})
	}
}

func TestCommand_Execute_NoArgsShowsHelp(t *testing.T) {
	root := &Command{
		Name: "biscuit",
		Subcommands: []*Command{
			{Name: "generate", Summary: "Create a token"},
		},
	}

	err := root.Execute([]string{})
	if err == nil {
		t.Fatal("Execute() = nil, want error for missing subcommand")
	}
	if !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("error = %q, want 'subcommand required'", err.Error())
	}
}

func TestCommand_PrintHelp(t *testing.T) {
	command := &Command{
		Name:        "biscuit",
		Description: "Create, attenuate, and inspect biscuit tokens.",
		Subcommands: []*Command{
			{Name: "keypair", Summary: "Generate or derive a key pair"},
			{Name: "generate", Summary: "Create a token"},
			{Name: "inspect", Summary: "Inspect a token"},
		},
		Examples: []Example{
			{
				Description: "Create a token from a datalog file",
				Command:     "biscuit generate --private-key-file root.key authority.datalog",
			},
		},
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()

	for _, want := range []string{
		"Create, attenuate, and inspect biscuit tokens.",
		"Usage:",
		"biscuit <command> [flags]",
		"Commands:",
		"keypair",
		"Generate or derive a key pair",
		"Examples:",
		"biscuit generate --private-key-file root.key authority.datalog",
		"Run 'biscuit <command> --help'",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q\n\nFull output:\n%s", want, output)
		}
	}
}

func TestCommand_PrintHelp_WithFlags(t *testing.T) {
	command := &Command{
		Name:    "seal",
		Summary: "Seal a token against further attenuation",
		Usage:   "biscuit seal [token-file] [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("seal", pflag.ContinueOnError)
			flagSet.Bool("raw-input", false, "read the token as raw binary")
			flagSet.Bool("raw-output", false, "write the token as raw binary")
			return flagSet
		},
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()

	for _, want := range []string{
		"biscuit seal [token-file] [flags]",
		"Flags:",
		"raw-input",
		"raw-output",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q\n\nFull output:\n%s", want, output)
		}
	}
}

func TestCommand_FullName(t *testing.T) {
	root := &Command{Name: "biscuit"}
	inspect := &Command{Name: "inspect", parent: root}

	if got := root.fullName(); got != "biscuit" {
		t.Errorf("root.fullName() = %q, want %q", got, "biscuit")
	}
	if got := inspect.fullName(); got != "biscuit inspect" {
		t.Errorf("inspect.fullName() = %q, want %q", got, "biscuit inspect")
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"seal", "", 4},
		{"seal", "seal", 0},
		{"atenuate", "attenuate", 1},
		{"inspct", "inspect", 1},
		{"kitten", "sitting", 3},
		{"abc", "xyz", 3},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}
