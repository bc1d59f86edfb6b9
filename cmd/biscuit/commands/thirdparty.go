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

// thirdPartyRequestCommand derives the request a token holder sends to
// an external signer.
func thirdPartyRequestCommand(r *runtime) *cli.Command {
	var (
		rawInput  bool
		rawOutput bool
	)

	return &cli.Command{
		Name:    "generate-third-party-block-request",
		Summary: "Derive a third-party block request from a token",
		Description: `Derive a third-party block request. The request pins the token's
current last block, so the block the third party signs can only be
appended to this exact token state. Send the request to the external
signer; it reveals no token content.`,
		Usage: "biscuit generate-third-party-block-request [token-file] [flags]",
		Examples: []cli.Example{
			{
				Description: "Produce a request for an external signer",
				Command:     "biscuit generate-third-party-block-request token.bc > request.bc",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("generate-third-party-block-request", pflag.ContinueOnError)
			flags.BoolVar(&rawInput, "raw-input", false, "read the token as raw binary")
			flags.BoolVar(&rawOutput, "raw-output", false, "write the request as raw binary")
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
			request, err := parsed.ThirdPartyRequest()
			if err != nil {
				return err
			}
			payload, err := request.Serialize()
			if err != nil {
				return err
			}
			return r.writeSerialized(payload, rawOutput)
		},
	}
}

// thirdPartyBlockCommand signs a block against a request, acting as
// the external signer.
func thirdPartyBlockCommand(r *runtime) *cli.Command {
	var (
		configPath string
		rawInput   bool
		rawOutput  bool
		keyFlags   privateKeyFlags
		block      blockFlags
	)

	return &cli.Command{
		Name:    "generate-third-party-block",
		Summary: "Sign a block against a third-party request",
		Description: `Sign a block with your own key against a request received from a
token holder. The result is a signed block payload for the holder to
append with append-third-party-block. Your key never has to be shared
with the token's root authority.`,
		Usage: "biscuit generate-third-party-block [request-file] [flags]",
		Examples: []cli.Example{
			{
				Description: "Sign a group membership block against a request",
				Command:     `biscuit generate-third-party-block request.bc --private-key-file org.key --block 'group("admin");'`,
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("generate-third-party-block", pflag.ContinueOnError)
			addConfigFlag(flags, &configPath)
			flags.BoolVar(&rawInput, "raw-input", false, "read the request as raw binary")
			flags.BoolVar(&rawOutput, "raw-output", false, "write the block as raw binary")
			keyFlags.register(flags)
			block.register(flags)
			return flags
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

			requestSource, err := positionalToken(args, rawInput)
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
			blockSource, err := block.source()
			if err != nil {
				return err
			}
			if err := input.EnsureSingleStdin(requestSource, keySource, blockSource); err != nil {
				return err
			}

			stdin := r.newStdin()
			requestBytes, err := input.ResolveToken(requestSource, stdin)
			if err != nil {
				return err
			}
			request, err := token.ParseRequest(requestBytes)
			if err != nil {
				return err
			}
			external, err := input.ResolveKey(keySource, stdin)
			if err != nil {
				return err
			}
			builder, err := block.build(blockSource, stdin, &input.Editor{Command: cfg.Editor}, time.Now())
			if err != nil {
				return err
			}

			signed, err := request.CreateBlock(external, builder)
			if err != nil {
				return err
			}
			payload, err := signed.Serialize()
			if err != nil {
				return err
			}
			return r.writeSerialized(payload, rawOutput)
		},
	}
}

// appendThirdPartyCommand appends an externally signed block to the
// token it was requested for.
func appendThirdPartyCommand(r *runtime) *cli.Command {
	var (
		rawInput      bool
		rawOutput     bool
		blockContents string
		blockFile     string
		rawBlock      bool
	)

	return &cli.Command{
		Name:    "append-third-party-block",
		Summary: "Append an externally signed block to a token",
		Description: `Append a block produced by generate-third-party-block. The external
signature is checked against the token's current last block before the
append, so a block signed for an older token state is rejected.`,
		Usage: "biscuit append-third-party-block [token-file] [flags]",
		Examples: []cli.Example{
			{
				Description: "Append the signer's response to the token",
				Command:     "biscuit append-third-party-block token.bc --block-contents-file signed-block.bc",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("append-third-party-block", pflag.ContinueOnError)
			flags.BoolVar(&rawInput, "raw-input", false, "read the token as raw binary")
			flags.BoolVar(&rawOutput, "raw-output", false, "write the token as raw binary")
			flags.StringVar(&blockContents, "block-contents", "", "signed block given inline as base64")
			flags.StringVar(&blockFile, "block-contents-file", "", "read the signed block from this file (- for stdin)")
			flags.BoolVar(&rawBlock, "raw-block-contents", false, "read the signed block as raw binary")
			return flags
		},
		Run: func(args []string) error {
			tokenSource, err := positionalToken(args, rawInput)
			if err != nil {
				return err
			}
			blockSource, err := thirdPartyBlockSource(blockContents, blockFile, rawBlock)
			if err != nil {
				return err
			}
			// The token and the block payload are independent inputs;
			// each may name stdin, but not both.
			if err := input.EnsureSingleStdin(tokenSource, blockSource); err != nil {
				return err
			}

			stdin := r.newStdin()
			parsed, err := parseToken(tokenSource, stdin)
			if err != nil {
				return err
			}
			blockBytes, err := input.ResolveToken(blockSource, stdin)
			if err != nil {
				return err
			}
			signed, err := token.ParseThirdPartyBlock(blockBytes)
			if err != nil {
				return err
			}

			extended, err := parsed.AppendThirdParty(signed)
			if err != nil {
				return err
			}
			payload, err := extended.Serialize()
			if err != nil {
				return err
			}
			return r.writeSerialized(payload, rawOutput)
		},
	}
}

// thirdPartyBlockSource maps the block-contents flag group to a
// payload source.
func thirdPartyBlockSource(literal, file string, raw bool) (input.TokenSource, error) {
	if literal != "" && file != "" {
		return input.TokenSource{}, fmt.Errorf("--block-contents and --block-contents-file are mutually exclusive")
	}
	encoding := input.EncodingBase64
	if raw {
		encoding = input.EncodingRaw
	}
	if literal != "" {
		return input.TokenLiteral(literal), nil
	}
	if file != "" {
		return input.TokenFromFile(file, encoding), nil
	}
	return input.TokenSource{}, fmt.Errorf("a signed block is required (--block-contents or --block-contents-file)")
}
