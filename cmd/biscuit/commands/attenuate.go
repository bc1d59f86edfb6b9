// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/crumbtools/biscuit/cmd/biscuit/cli"
	"github.com/crumbtools/biscuit/lib/input"
)

// attenuateCommand appends a restriction block to an existing token.
func attenuateCommand(r *runtime) *cli.Command {
	var (
		configPath string
		rawInput   bool
		rawOutput  bool
		block      blockFlags
	)

	return &cli.Command{
		Name:    "attenuate",
		Summary: "Append a restriction block to a token",
		Description: `Append a block to a token, producing a more restricted token. The
original token is unchanged; anyone holding the attenuated token is
bound by the new block's checks in addition to all earlier ones.

The block datalog comes from --block, --block-file, or your editor.
Sealed tokens cannot be attenuated.`,
		Usage: "biscuit attenuate [token-file] [flags]",
		Examples: []cli.Example{
			{
				Description: "Limit a token to read operations",
				Command:     `biscuit attenuate token.bc --block 'check if operation("read");'`,
			},
			{
				Description: "Add a 30-minute expiration to a token from stdin",
				Command:     "cat token.bc | biscuit attenuate --block-file restriction.datalog --add-ttl 30m",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("attenuate", pflag.ContinueOnError)
			addConfigFlag(flags, &configPath)
			flags.BoolVar(&rawInput, "raw-input", false, "read the token as raw binary")
			flags.BoolVar(&rawOutput, "raw-output", false, "write the token as raw binary")
			block.register(flags)
			return flags
		},
		Run: func(args []string) error {
			cfg, err := r.loadConfig(configPath)
			if err != nil {
				return err
			}

			tokenSource, err := positionalToken(args, rawInput)
			if err != nil {
				return err
			}
			blockSource, err := block.source()
			if err != nil {
				return err
			}
			if err := input.EnsureSingleStdin(tokenSource, blockSource); err != nil {
				return err
			}

			stdin := r.newStdin()
			parsed, err := parseToken(tokenSource, stdin)
			if err != nil {
				return err
			}
			builder, err := block.build(blockSource, stdin, &input.Editor{Command: cfg.Editor}, time.Now())
			if err != nil {
				return err
			}

			attenuated, err := parsed.Append(builder)
			if err != nil {
				return err
			}
			payload, err := attenuated.Serialize()
			if err != nil {
				return err
			}
			return r.writeSerialized(payload, rawOutput)
		},
	}
}
