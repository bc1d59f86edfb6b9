// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"github.com/spf13/pflag"

	"github.com/crumbtools/biscuit/cmd/biscuit/cli"
)

// sealCommand converts a token's open proof into a final signature.
func sealCommand(r *runtime) *cli.Command {
	var (
		rawInput  bool
		rawOutput bool
	)

	return &cli.Command{
		Name:    "seal",
		Summary: "Seal a token against further attenuation",
		Description: `Seal a token. A sealed token carries a final signature instead of the
open proof, so no holder can append further blocks. Sealing is
irreversible.`,
		Usage: "biscuit seal [token-file] [flags]",
		Examples: []cli.Example{
			{
				Description: "Seal a token before handing it to an untrusted party",
				Command:     "biscuit seal token.bc",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("seal", pflag.ContinueOnError)
			flags.BoolVar(&rawInput, "raw-input", false, "read the token as raw binary")
			flags.BoolVar(&rawOutput, "raw-output", false, "write the token as raw binary")
			return flags
		},
		Run: func(args []string) error {
			tokenSource, err := positionalToken(args, rawInput)
			if err != nil {
				return err
			}
			parsed, err := parseToken(tokenSource, r.newStdin())
			if err != nil {
				return err
			}
			sealed, err := parsed.Seal()
			if err != nil {
				return err
			}
			payload, err := sealed.Serialize()
			if err != nil {
				return err
			}
			return r.writeSerialized(payload, rawOutput)
		},
	}
}
