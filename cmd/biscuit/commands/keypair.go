// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/crumbtools/biscuit/cmd/biscuit/cli"
	"github.com/crumbtools/biscuit/lib/input"
	"github.com/crumbtools/biscuit/lib/keys"
)

// keypairCommand generates a fresh key pair or derives one from
// existing private key material.
func keypairCommand(r *runtime) *cli.Command {
	var (
		configPath     string
		fromKey        string
		fromFile       string
		fromFormat     string
		fromAlgorithm  string
		fromSealedFile string
		keyAlgorithm   string
		outputFormat   string
		onlyPublic     bool
		onlyPrivate    bool
		seal           bool
		savePrivateTo  string
	)

	return &cli.Command{
		Name:    "keypair",
		Summary: "Generate or derive a key pair",
		Description: `Generate a new key pair, or derive the pair belonging to existing
private key material.

Without --from flags a fresh random key is generated. With one of the
--from flags the private key is read from the given source and its
public key derived, which is how you recover a public key you did not
save.

With --seal the private key is written passphrase-encrypted to
--save-private-to instead of being printed; only the public key goes
to stdout. Such a file is read back with --from-sealed-file.`,
		Usage: "biscuit keypair [flags]",
		Examples: []cli.Example{
			{
				Description: "Generate a new random key pair",
				Command:     "biscuit keypair",
			},
			{
				Description: "Derive the public key of a stored private key",
				Command:     "biscuit keypair --from-private-key-file root.key --only-public-key",
			},
			{
				Description: "Generate a P-256 pair, keeping the private key sealed on disk",
				Command:     "biscuit keypair --key-algorithm secp256r1 --seal --save-private-to root.sealed",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("keypair", pflag.ContinueOnError)
			addConfigFlag(flags, &configPath)
			flags.StringVar(&fromKey, "from-private-key", "", "derive from this private key (prefixed or bare hex)")
			flags.StringVar(&fromFile, "from-private-key-file", "", "derive from the private key in this file (- for stdin)")
			flags.StringVar(&fromFormat, "from-format", "hex", "input format of the key file: hex, pem, or raw")
			flags.StringVar(&fromAlgorithm, "from-algorithm", "", "algorithm for raw key bytes: ed25519 or secp256r1")
			flags.StringVar(&fromSealedFile, "from-sealed-file", "", "derive from a passphrase-sealed private key file")
			flags.StringVar(&keyAlgorithm, "key-algorithm", "", "algorithm for a newly generated key: ed25519 or secp256r1")
			flags.StringVar(&outputFormat, "key-output-format", "hex", "output format: hex, pem, or raw")
			flags.BoolVar(&onlyPublic, "only-public-key", false, "print only the public key")
			flags.BoolVar(&onlyPrivate, "only-private-key", false, "print only the private key")
			flags.BoolVar(&seal, "seal", false, "write the private key passphrase-sealed to --save-private-to")
			flags.StringVar(&savePrivateTo, "save-private-to", "", "destination file for the sealed private key")
			return flags
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			if onlyPublic && onlyPrivate {
				return fmt.Errorf("--only-public-key and --only-private-key are mutually exclusive")
			}
			if seal && savePrivateTo == "" {
				return fmt.Errorf("--seal requires --save-private-to")
			}

			cfg, err := r.loadConfig(configPath)
			if err != nil {
				return err
			}
			defaultAlgorithm, err := cfg.Algorithm()
			if err != nil {
				return err
			}

			format, err := input.ParseKeyFormat(outputFormat)
			if err != nil {
				return err
			}

			pair, generated, err := resolveKeyPair(r, keypairInputs{
				fromKey:          fromKey,
				fromFile:         fromFile,
				fromFormat:       fromFormat,
				fromAlgorithm:    fromAlgorithm,
				fromSealedFile:   fromSealedFile,
				keyAlgorithm:     keyAlgorithm,
				defaultAlgorithm: defaultAlgorithm,
			})
			if err != nil {
				return err
			}

			if seal {
				passphrase, err := promptPassphrase("passphrase for sealed key: ")
				if err != nil {
					return err
				}
				sealed, err := keys.Seal(pair.Private, passphrase)
				if err != nil {
					return err
				}
				if err := os.WriteFile(savePrivateTo, sealed, 0o600); err != nil {
					return fmt.Errorf("writing %s: %w", savePrivateTo, err)
				}
				r.logger.Info("sealed private key written", "path", savePrivateTo, "algorithm", pair.Private.Algorithm())
				if !onlyPrivate {
					fmt.Fprintf(r.stdout, "Public key: %s\n", pair.Public)
				}
				return nil
			}

			return printKeyPair(r, pair, format, generated, onlyPublic, onlyPrivate)
		},
	}
}

// keypairInputs gathers everything that can select the key material.
type keypairInputs struct {
	fromKey          string
	fromFile         string
	fromFormat       string
	fromAlgorithm    string
	fromSealedFile   string
	keyAlgorithm     string
	defaultAlgorithm keys.Algorithm
}

// resolveKeyPair derives the pair from the given material, or
// generates a fresh one. generated reports which happened.
func resolveKeyPair(r *runtime, in keypairInputs) (pair *keys.KeyPair, generated bool, err error) {
	if in.fromSealedFile != "" {
		if in.fromKey != "" || in.fromFile != "" {
			return nil, false, fmt.Errorf("--from-sealed-file excludes the other --from flags")
		}
		sealed, err := os.ReadFile(in.fromSealedFile)
		if err != nil {
			return nil, false, fmt.Errorf("reading %s: %w", in.fromSealedFile, err)
		}
		passphrase, err := promptPassphrase("passphrase for " + in.fromSealedFile + ": ")
		if err != nil {
			return nil, false, err
		}
		private, err := keys.Unseal(sealed, passphrase)
		if err != nil {
			return nil, false, err
		}
		return keys.NewKeyPair(private), false, nil
	}

	source, ok, err := keySourceFrom(in.fromKey, in.fromFile, in.fromFormat, in.fromAlgorithm, in.defaultAlgorithm, "--from-private-key")
	if err != nil {
		return nil, false, err
	}
	if ok {
		private, err := input.ResolveKey(source, r.newStdin())
		if err != nil {
			return nil, false, err
		}
		return keys.NewKeyPair(private), false, nil
	}

	algorithm := in.defaultAlgorithm
	if in.keyAlgorithm != "" {
		algorithm, err = keys.ParseAlgorithm(in.keyAlgorithm)
		if err != nil {
			return nil, false, err
		}
	}
	fresh, err := keys.Generate(algorithm)
	if err != nil {
		return nil, false, err
	}
	return fresh, true, nil
}

// printKeyPair writes the selected keys in the selected format. Raw
// output is a single key's bytes, so it refuses to print both.
func printKeyPair(r *runtime, pair *keys.KeyPair, format input.KeyFormat, generated, onlyPublic, onlyPrivate bool) error {
	switch format {
	case input.KeyRaw:
		switch {
		case onlyPrivate:
			_, err := r.stdout.Write(pair.Private.Bytes())
			return err
		case onlyPublic:
			_, err := r.stdout.Write(pair.Public.Bytes())
			return err
		default:
			return fmt.Errorf("raw output requires --only-public-key or --only-private-key")
		}
	case input.KeyPEM:
		if !onlyPublic {
			encoded, err := pair.Private.PEM()
			if err != nil {
				return err
			}
			if _, err := r.stdout.Write(encoded); err != nil {
				return err
			}
		}
		if !onlyPrivate {
			encoded, err := pair.Public.PEM()
			if err != nil {
				return err
			}
			if _, err := r.stdout.Write(encoded); err != nil {
				return err
			}
		}
		return nil
	default:
		if !onlyPublic && !onlyPrivate {
			if generated {
				fmt.Fprintf(r.stdout, "Generating a new random %s key pair\n", pair.Private.Algorithm())
			}
			fmt.Fprintf(r.stdout, "Private key: %s\n", pair.Private)
			fmt.Fprintf(r.stdout, "Public key: %s\n", pair.Public)
			return nil
		}
		if onlyPrivate {
			fmt.Fprintln(r.stdout, pair.Private)
			return nil
		}
		fmt.Fprintln(r.stdout, pair.Public)
		return nil
	}
}
