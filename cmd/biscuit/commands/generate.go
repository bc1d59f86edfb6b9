// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/crumbtools/biscuit/cmd/biscuit/cli"
	"github.com/crumbtools/biscuit/lib/input"
	"github.com/crumbtools/biscuit/lib/token"
)

// generateCommand creates a fresh token from an authority block and a
// root private key.
func generateCommand(r *runtime) *cli.Command {
	var (
		configPath string
		keyFlags   privateKeyFlags
		block      blockFlags
		rootKeyID  uint32
		raw        bool
		flagSet    *pflag.FlagSet
	)

	return &cli.Command{
		Name:    "generate",
		Summary: "Create a token",
		Description: `Create a token from an authority block signed by the root private key.

The authority datalog comes from the positional file argument, - for
stdin, or your editor when no argument is given. Parameters in the
datalog ({name}) must all be bound with --param before signing.`,
		Usage: "biscuit generate [datalog-file] [flags]",
		Examples: []cli.Example{
			{
				Description: "Create a token from a file",
				Command:     "biscuit generate --private-key-file root.key authority.datalog",
			},
			{
				Description: "Create a token from stdin with a 1-day expiration",
				Command:     `echo 'user("alice");' | biscuit generate --private-key ed25519-private/12af... --add-ttl 1d -`,
			},
			{
				Description: "Bind a parameter in the authority block",
				Command:     `biscuit generate --private-key-file root.key --param user=alice authority.datalog`,
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet = pflag.NewFlagSet("generate", pflag.ContinueOnError)
			addConfigFlag(flagSet, &configPath)
			keyFlags.register(flagSet)
			block.register(flagSet)
			flagSet.Uint32Var(&rootKeyID, "root-key-id", 0, "hint naming which root key signed this token")
			flagSet.BoolVar(&raw, "raw", false, "write the token as raw binary instead of base64")
			return flagSet
		},
		Run: func(args []string) error {
			cfg, err := r.loadConfig(configPath)
			if err != nil {
				return err
			}
			defaultAlgorithm, err := cfg.Algorithm()
			if err != nil {
				return err
			}

			datalogSource, err := generateDatalogSource(args, &block)
			if err != nil {
				return err
			}
			keySource, ok, err := keyFlags.source(defaultAlgorithm)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("a signing key is required (--private-key or --private-key-file)")
			}

			if err := input.EnsureSingleStdin(datalogSource, keySource); err != nil {
				return err
			}

			stdin := r.newStdin()
			root, err := input.ResolveKey(keySource, stdin)
			if err != nil {
				return err
			}
			builder, err := block.build(datalogSource, stdin, &input.Editor{Command: cfg.Editor}, time.Now())
			if err != nil {
				return err
			}

			var keyID *uint32
			if flagSet.Changed("root-key-id") {
				keyID = &rootKeyID
			}
			minted, err := token.Build(builder, root, keyID)
			if err != nil {
				return err
			}
			payload, err := minted.Serialize()
			if err != nil {
				return err
			}
			return r.writeSerialized(payload, raw)
		},
	}
}

// generateDatalogSource maps the positional argument to the authority
// datalog source. The --block flags double as an inline alternative.
func generateDatalogSource(args []string, block *blockFlags) (input.DatalogSource, error) {
	if len(args) > 1 {
		return input.DatalogSource{}, fmt.Errorf("unexpected argument: %s", args[1])
	}
	if len(args) == 1 {
		if block.literal != "" || block.file != "" {
			return input.DatalogSource{}, fmt.Errorf("the positional datalog file excludes --block and --block-file")
		}
		return input.DatalogFromFile(args[0]), nil
	}
	return block.source()
}
