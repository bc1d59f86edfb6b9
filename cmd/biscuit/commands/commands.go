// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete biscuit CLI command tree. Each
// subcommand follows the same pipeline: construct input sources from
// flags, validate the stdin budget, resolve inputs, perform the token
// operation, and write the encoded result.
package commands

import (
	"fmt"

	"github.com/crumbtools/biscuit/cmd/biscuit/cli"
	"github.com/crumbtools/biscuit/lib/version"
)

// Root builds and returns the complete biscuit CLI command tree.
func Root() *cli.Command {
	return rootWith(newRuntime())
}

// rootWith assembles the tree over an explicit runtime. Tests use this
// to drive full command pipelines against in-memory streams.
func rootWith(r *runtime) *cli.Command {
	return &cli.Command{
		Name: "biscuit",
		Description: `Biscuit token toolkit.

Create, attenuate, seal, and inspect biscuit authorization tokens:
chains of datalog blocks where every block is covered by the signature
chain and any holder can append further restrictions offline.`,
		Subcommands: []*cli.Command{
			keypairCommand(r),
			generateCommand(r),
			attenuateCommand(r),
			inspectCommand(r),
			inspectSnapshotCommand(r),
			thirdPartyRequestCommand(r),
			thirdPartyBlockCommand(r),
			appendThirdPartyCommand(r),
			sealCommand(r),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Fprintf(r.stdout, "biscuit %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Generate a root key pair",
				Command:     "biscuit keypair",
			},
			{
				Description: "Create a token from a datalog file",
				Command:     `biscuit generate --private-key-file root.key authority.datalog`,
			},
			{
				Description: "Restrict a token and pass it on",
				Command:     `biscuit attenuate token.bc --block 'check if operation("read");'`,
			},
			{
				Description: "Inspect a token, verifying its signatures",
				Command:     "biscuit inspect token.bc --public-key ed25519/3fa05f...",
			},
			{
				Description: "Authorize a token against a policy file",
				Command:     "biscuit inspect token.bc --authorize-with-file policy.datalog --include-time",
			},
		},
	}
}
