// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/crumbtools/biscuit/cmd/biscuit/cli"
	"github.com/crumbtools/biscuit/lib/config"
	"github.com/crumbtools/biscuit/lib/datalog"
	"github.com/crumbtools/biscuit/lib/input"
	"github.com/crumbtools/biscuit/lib/keys"
	"github.com/crumbtools/biscuit/lib/token"
)

// runtime carries the process-level resources every command shares:
// the standard streams, the logger, and configuration loading. Tests
// substitute buffers to drive full command pipelines in-process.
type runtime struct {
	stdin  io.Reader
	stdout io.Writer
	logger *slog.Logger
}

func newRuntime() *runtime {
	return &runtime{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		logger: cli.NewCommandLogger(),
	}
}

// newStdin wraps the process stdin as a fresh once-readable handle for
// one command invocation.
func (r *runtime) newStdin() *input.Stdin {
	return input.NewStdin(r.stdin)
}

// loadConfig resolves configuration: an explicit --config path wins,
// then BISCUIT_CONFIG, then built-in defaults.
func (r *runtime) loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// promptPassphrase reads a passphrase from the terminal without echo.
// A variable so tests can substitute a canned answer.
var promptPassphrase = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(raw), nil
}

// addConfigFlag registers the shared --config flag.
func addConfigFlag(flags *pflag.FlagSet, path *string) {
	flags.StringVar(path, "config", "", "config file path (overrides BISCUIT_CONFIG)")
}

// privateKeyFlags is the flag group selecting a private key input.
type privateKeyFlags struct {
	literal   string
	file      string
	format    string
	algorithm string
}

func (f *privateKeyFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.literal, "private-key", "", "private key given inline (prefixed or bare hex; PEM with --private-key-format pem)")
	flags.StringVar(&f.file, "private-key-file", "", "read the private key from this file (- for stdin)")
	flags.StringVar(&f.format, "private-key-format", "hex", "key input format: hex, pem, or raw")
	flags.StringVar(&f.algorithm, "private-key-algorithm", "", "algorithm for raw key bytes: ed25519 or secp256r1")
}

// source maps the flag group to a key source. ok is false when no key
// flag was given at all.
func (f *privateKeyFlags) source(defaultAlgorithm keys.Algorithm) (source input.KeySource, ok bool, err error) {
	return keySourceFrom(f.literal, f.file, f.format, f.algorithm, defaultAlgorithm, "--private-key")
}

// publicKeyFlags is the flag group selecting a public key input.
type publicKeyFlags struct {
	literal   string
	file      string
	format    string
	algorithm string
}

func (f *publicKeyFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.literal, "public-key", "", "public key given inline (prefixed or bare hex; PEM with --public-key-format pem)")
	flags.StringVar(&f.file, "public-key-file", "", "read the public key from this file (- for stdin)")
	flags.StringVar(&f.format, "public-key-format", "hex", "key input format: hex, pem, or raw")
	flags.StringVar(&f.algorithm, "public-key-algorithm", "", "algorithm for raw key bytes: ed25519 or secp256r1")
}

func (f *publicKeyFlags) source(defaultAlgorithm keys.Algorithm) (source input.KeySource, ok bool, err error) {
	return keySourceFrom(f.literal, f.file, f.format, f.algorithm, defaultAlgorithm, "--public-key")
}

func keySourceFrom(literal, file, formatText, algorithmText string, defaultAlgorithm keys.Algorithm, flagName string) (input.KeySource, bool, error) {
	if literal != "" && file != "" {
		return input.KeySource{}, false, fmt.Errorf("%s and %s-file are mutually exclusive", flagName, flagName)
	}
	format, err := input.ParseKeyFormat(formatText)
	if err != nil {
		return input.KeySource{}, false, err
	}
	algorithm := defaultAlgorithm
	if algorithmText != "" {
		algorithm, err = keys.ParseAlgorithm(algorithmText)
		if err != nil {
			return input.KeySource{}, false, err
		}
	}
	switch {
	case literal != "" && format == input.KeyPEM:
		return input.KeyPEMLiteral(literal), true, nil
	case literal != "":
		return input.KeyLiteral(literal), true, nil
	case file != "":
		return input.KeyFromFile(file, format, algorithm), true, nil
	default:
		return input.KeySource{}, false, nil
	}
}

// blockFlags is the flag group describing a new block: its datalog
// source, context string, expiration, and parameter bindings.
type blockFlags struct {
	literal string
	file    string
	context string
	ttl     string
	params  []string
}

func (f *blockFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.literal, "block", "", "block datalog given inline")
	flags.StringVar(&f.file, "block-file", "", "read block datalog from this file (- for stdin)")
	flags.StringVar(&f.context, "context", "", "free-form context string attached to the block")
	flags.StringVar(&f.ttl, "add-ttl", "", "attach an expiration check (RFC3339 instant or duration like 300s, 15m, 1d)")
	flags.StringSliceVar(&f.params, "param", nil, "bind a datalog parameter (name[:type]=value, repeatable)")
}

// source picks the datalog origin: inline, file, or the editor when
// neither flag was given.
func (f *blockFlags) source() (input.DatalogSource, error) {
	if f.literal != "" && f.file != "" {
		return input.DatalogSource{}, fmt.Errorf("--block and --block-file are mutually exclusive")
	}
	if f.literal != "" {
		return input.DatalogLiteral(f.literal), nil
	}
	if f.file != "" {
		return input.DatalogFromFile(f.file), nil
	}
	return input.DatalogFromEditor(), nil
}

// build resolves the block source and assembles a signed-block builder.
func (f *blockFlags) build(source input.DatalogSource, stdin *input.Stdin, editor *input.Editor, now time.Time) (*token.BlockBuilder, error) {
	text, err := input.ResolveDatalog(source, stdin, editor)
	if err != nil {
		return nil, err
	}
	program, err := datalog.ParseBlock(text)
	if err != nil {
		return nil, err
	}
	bindings, err := input.ParseParams(f.params)
	if err != nil {
		return nil, err
	}
	program.Bind(bindings)
	if err := program.CheckBound(); err != nil {
		return nil, err
	}

	builder := token.NewBlockBuilder().AddProgram(program)
	if f.context != "" {
		builder.SetContext(f.context)
	}
	if f.ttl != "" {
		expiry, err := input.ParseTTL(f.ttl, now)
		if err != nil {
			return nil, err
		}
		builder.CheckExpiration(expiry)
	}
	return builder, nil
}

// limitFlags is the flag group bounding authorization evaluation.
type limitFlags struct {
	maxFacts      int
	maxIterations int
	maxTime       time.Duration
}

func (f *limitFlags) register(flags *pflag.FlagSet) {
	flags.IntVar(&f.maxFacts, "max-facts", datalog.DefaultRunLimits.MaxFacts, "maximum number of generated facts")
	flags.IntVar(&f.maxIterations, "max-iterations", datalog.DefaultRunLimits.MaxIterations, "maximum number of evaluation iterations")
	flags.DurationVar(&f.maxTime, "max-time", datalog.DefaultRunLimits.MaxTime, "maximum evaluation wall-clock time")
}

// limits merges config defaults with explicit flag overrides.
func (f *limitFlags) limits(flagSet *pflag.FlagSet, cfg *config.Config) (datalog.RunLimits, error) {
	limits, err := cfg.Limits()
	if err != nil {
		return datalog.RunLimits{}, err
	}
	if flagSet.Changed("max-facts") {
		limits.MaxFacts = f.maxFacts
	}
	if flagSet.Changed("max-iterations") {
		limits.MaxIterations = f.maxIterations
	}
	if flagSet.Changed("max-time") {
		limits.MaxTime = f.maxTime
	}
	return limits, nil
}

// positionalToken maps the optional positional payload argument to a
// token source: a path, - for stdin, or stdin when absent.
func positionalToken(args []string, rawInput bool) (input.TokenSource, error) {
	encoding := input.EncodingBase64
	if rawInput {
		encoding = input.EncodingRaw
	}
	switch len(args) {
	case 0:
		return input.TokenFromFile("-", encoding), nil
	case 1:
		return input.TokenFromFile(args[0], encoding), nil
	default:
		return input.TokenSource{}, fmt.Errorf("unexpected argument: %s", args[1])
	}
}

// parseToken resolves and decodes a token in one step.
func parseToken(source input.TokenSource, stdin *input.Stdin) (*token.Biscuit, error) {
	raw, err := input.ResolveToken(source, stdin)
	if err != nil {
		return nil, err
	}
	return token.Parse(raw)
}

// writeSerialized writes a serializable payload through the shared
// output encoder.
func (r *runtime) writeSerialized(payload []byte, raw bool) error {
	return input.WriteResult(r.stdout, payload, raw)
}
