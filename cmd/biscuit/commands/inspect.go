// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/crumbtools/biscuit/cmd/biscuit/cli"
	"github.com/crumbtools/biscuit/lib/datalog"
	"github.com/crumbtools/biscuit/lib/input"
	"github.com/crumbtools/biscuit/lib/token"
)

// inspectCommand prints a token's contents and optionally verifies,
// authorizes, and queries it.
func inspectCommand(r *runtime) *cli.Command {
	var (
		configPath      string
		rawInput        bool
		pubFlags        publicKeyFlags
		authWith        string
		authFile        string
		interactive     bool
		authSnapshot    string
		authSnapshotAt  string
		rawAuthSnapshot bool
		includeTime     bool
		queryText   string
		queryAll    string
		params      []string
		limits      limitFlags
		snapshotTo  string
		rawSnapshot bool
		policiesTo  string
		rawPolicies bool
		asJSON      bool
		flagSet     *pflag.FlagSet
	)

	return &cli.Command{
		Name:    "inspect",
		Summary: "Inspect a token",
		Description: `Print a token's blocks and revocation identifiers.

With a public key the root signature chain is verified; a token signed
by any other key fails. With --authorize-with (or -file, or
--authorize-interactive for your editor) the token is evaluated
against authorizer datalog and the decision is reported; a denial
exits non-zero. A policies snapshot dumped by an earlier run can stand
in for the datalog via --authorize-with-snapshot or
--authorize-with-snapshot-file.

--query derives facts from the authority block and the authorizer,
--query-all widens to every block, including ones you have no reason
to trust.`,
		Usage: "biscuit inspect [token-file] [flags]",
		Examples: []cli.Example{
			{
				Description: "Show a token's blocks",
				Command:     "biscuit inspect token.bc",
			},
			{
				Description: "Verify and authorize a token",
				Command:     `biscuit inspect token.bc --public-key-file root.pub --authorize-with 'allow if user("alice");'`,
			},
			{
				Description: "Query facts, binding a parameter",
				Command:     `biscuit inspect token.bc --query 'who($name) <- user($name), group({group})' --param group=admin`,
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet = pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			addConfigFlag(flagSet, &configPath)
			flagSet.BoolVar(&rawInput, "raw-input", false, "read the token as raw binary")
			pubFlags.register(flagSet)
			flagSet.StringVar(&authWith, "authorize-with", "", "authorizer datalog given inline")
			flagSet.StringVar(&authFile, "authorize-with-file", "", "read authorizer datalog from this file (- for stdin)")
			flagSet.BoolVar(&interactive, "authorize-interactive", false, "write the authorizer datalog in your editor")
			flagSet.StringVar(&authSnapshot, "authorize-with-snapshot", "", "policies snapshot given inline as base64 to authorize with")
			flagSet.StringVar(&authSnapshotAt, "authorize-with-snapshot-file", "", "read the policies snapshot to authorize with from this file (- for stdin)")
			flagSet.BoolVar(&rawAuthSnapshot, "authorize-with-raw-snapshot-file", false, "read the snapshot file as raw binary")
			flagSet.BoolVar(&includeTime, "include-time", false, "add a time() fact with the current time before authorizing")
			flagSet.StringVar(&queryText, "query", "", "rule to derive facts from the authority block and authorizer")
			flagSet.StringVar(&queryAll, "query-all", "", "rule to derive facts from every block, trusted or not")
			flagSet.StringSliceVar(&params, "param", nil, "bind a datalog parameter (name[:type]=value, repeatable)")
			limits.register(flagSet)
			flagSet.StringVar(&snapshotTo, "dump-snapshot-to", "", "write an authorizer snapshot to this file after authorizing")
			flagSet.BoolVar(&rawSnapshot, "dump-raw-snapshot", false, "write the snapshot as raw binary instead of base64")
			flagSet.StringVar(&policiesTo, "dump-policies-snapshot-to", "", "write a policies-only snapshot to this file")
			flagSet.BoolVar(&rawPolicies, "dump-raw-policies-snapshot", false, "write the policies snapshot as raw binary")
			flagSet.BoolVar(&asJSON, "json", false, "print a machine-readable report")
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
			runLimits, err := limits.limits(flagSet, cfg)
			if err != nil {
				return err
			}

			if queryText != "" && queryAll != "" {
				return fmt.Errorf("--query and --query-all are mutually exclusive")
			}
			choice, err := authorizerChoiceFrom(authWith, authFile, interactive,
				authSnapshot, authSnapshotAt, rawAuthSnapshot)
			if err != nil {
				return err
			}
			if (snapshotTo != "" || policiesTo != "") && !choice.given {
				return fmt.Errorf("snapshot dumps require an authorizer (--authorize-with, --authorize-with-file, or --authorize-with-snapshot)")
			}

			tokenSource, err := positionalToken(args, rawInput)
			if err != nil {
				return err
			}
			pubSource, havePub, err := pubFlags.source(defaultAlgorithm)
			if err != nil {
				return err
			}
			stdinSources := []input.Source{tokenSource}
			if havePub {
				stdinSources = append(stdinSources, pubSource)
			}
			if choice.given {
				stdinSources = append(stdinSources, choice.source())
			}
			if err := input.EnsureSingleStdin(stdinSources...); err != nil {
				return err
			}

			stdin := r.newStdin()
			parsed, err := parseToken(tokenSource, stdin)
			if err != nil {
				return err
			}

			report, err := buildReport(parsed)
			if err != nil {
				return err
			}

			if havePub {
				pub, err := input.ResolvePublicKey(pubSource, stdin)
				if err != nil {
					return err
				}
				if err := parsed.Verify(pub); err != nil {
					return err
				}
				verified := true
				report.SignatureValid = &verified
			}

			bindings, err := input.ParseParams(params)
			if err != nil {
				return err
			}

			blocks, err := parsed.BlockCodes()
			if err != nil {
				return err
			}

			var authorizer *datalog.Authorizer
			switch {
			case choice.fromSnapshot:
				raw, err := input.ResolveToken(choice.snapshot, stdin)
				if err != nil {
					return err
				}
				loaded, err := datalog.ParseSnapshot(raw)
				if err != nil {
					return err
				}
				authorizer = loaded.Authorizer()
			case choice.given:
				text, err := input.ResolveDatalog(choice.datalog, stdin, &input.Editor{Command: cfg.Editor})
				if err != nil {
					return err
				}
				program, err := datalog.Parse(text)
				if err != nil {
					return err
				}
				program.Bind(bindings)
				if err := program.CheckBound(); err != nil {
					return err
				}
				authorizer = datalog.NewAuthorizer()
				authorizer.AddProgram(program)
			default:
				authorizer = datalog.NewAuthorizer()
			}
			authorizer.SetBlocks(blocks)

			if choice.given {
				if includeTime {
					authorizer.AddFact(timeFact(time.Now()))
				}
				result, err := authorizer.Authorize(runLimits)
				if err != nil {
					return err
				}
				report.Authorization = authorizationReportFrom(result)
			}

			if queryText != "" || queryAll != "" {
				text, all := queryText, false
				if queryAll != "" {
					text, all = queryAll, true
				}
				facts, err := runQuery(authorizer, text, bindings, runLimits, all)
				if err != nil {
					return err
				}
				report.QueryResults = make([]string, len(facts))
				for i, fact := range facts {
					report.QueryResults[i] = fact.String()
				}
			}

			if snapshotTo != "" {
				if err := writeSnapshot(authorizer.Snapshot(), snapshotTo, rawSnapshot); err != nil {
					return err
				}
				r.logger.Info("authorizer snapshot written", "path", snapshotTo)
			}
			if policiesTo != "" {
				if err := writeSnapshot(authorizer.PoliciesSnapshot(), policiesTo, rawPolicies); err != nil {
					return err
				}
				r.logger.Info("policies snapshot written", "path", policiesTo)
			}

			if asJSON {
				if err := report.writeJSON(r.stdout); err != nil {
					return err
				}
			} else {
				report.writeText(r.stdout)
			}
			if report.Authorization != nil && report.Authorization.Decision != datalog.Allow.String() {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

// authorizerChoice is the selected authorizer input: datalog text, a
// policies snapshot, or nothing.
type authorizerChoice struct {
	datalog      input.DatalogSource
	snapshot     input.TokenSource
	fromSnapshot bool
	given        bool
}

// source returns the active input for stdin accounting.
func (c authorizerChoice) source() input.Source {
	if c.fromSnapshot {
		return c.snapshot
	}
	return c.datalog
}

// authorizerChoiceFrom maps the five authorizer flags to at most one
// input.
func authorizerChoiceFrom(literal, file string, interactive bool, snapshotLiteral, snapshotFile string, rawSnapshot bool) (authorizerChoice, error) {
	given := 0
	for _, set := range []bool{literal != "", file != "", interactive, snapshotLiteral != "", snapshotFile != ""} {
		if set {
			given++
		}
	}
	if given > 1 {
		return authorizerChoice{}, fmt.Errorf("--authorize-with, --authorize-with-file, --authorize-interactive, --authorize-with-snapshot, and --authorize-with-snapshot-file are mutually exclusive")
	}
	if rawSnapshot && snapshotFile == "" {
		return authorizerChoice{}, fmt.Errorf("--authorize-with-raw-snapshot-file requires --authorize-with-snapshot-file")
	}
	switch {
	case literal != "":
		return authorizerChoice{datalog: input.DatalogLiteral(literal), given: true}, nil
	case file != "":
		return authorizerChoice{datalog: input.DatalogFromFile(file), given: true}, nil
	case interactive:
		return authorizerChoice{datalog: input.DatalogFromEditor(), given: true}, nil
	case snapshotLiteral != "":
		return authorizerChoice{snapshot: input.TokenLiteral(snapshotLiteral), fromSnapshot: true, given: true}, nil
	case snapshotFile != "":
		encoding := input.EncodingBase64
		if rawSnapshot {
			encoding = input.EncodingRaw
		}
		return authorizerChoice{snapshot: input.TokenFromFile(snapshotFile, encoding), fromSnapshot: true, given: true}, nil
	default:
		return authorizerChoice{}, nil
	}
}

func timeFact(now time.Time) datalog.Fact {
	return datalog.Fact{Predicate: datalog.Predicate{
		Name:  "time",
		Terms: []datalog.Term{datalog.DateTerm(now)},
	}}
}

// runQuery parses a query rule, binds parameters, and derives facts
// from the saturated world.
func runQuery(authorizer *datalog.Authorizer, text string, bindings map[string]datalog.Term, limits datalog.RunLimits, all bool) ([]datalog.Fact, error) {
	rule, err := datalog.ParseRule(text)
	if err != nil {
		return nil, err
	}
	wrapper := &datalog.Program{Rules: []datalog.Rule{*rule}}
	wrapper.Bind(bindings)
	if err := wrapper.CheckBound(); err != nil {
		return nil, err
	}
	return authorizer.Query(wrapper.Rules[0], limits, all)
}

func writeSnapshot(snapshot *datalog.Snapshot, path string, raw bool) error {
	var payload []byte
	if raw {
		serialized, err := snapshot.Serialize()
		if err != nil {
			return err
		}
		payload = serialized
	} else {
		encoded, err := snapshot.SerializeBase64()
		if err != nil {
			return err
		}
		payload = []byte(encoded + "\n")
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// blockReport describes one token block in the inspection report.
type blockReport struct {
	Index        int    `json:"index"`
	Code         string `json:"code"`
	Context      string `json:"context,omitempty"`
	ExternalKey  string `json:"external_key,omitempty"`
	RevocationID string `json:"revocation_id"`
}

// authorizationReport describes the outcome of an authorization run.
type authorizationReport struct {
	Decision     string   `json:"decision"`
	PolicyIndex  int      `json:"policy_index"`
	Policy       string   `json:"policy,omitempty"`
	FailedChecks []string `json:"failed_checks,omitempty"`
}

// inspectReport is the full report for one token, rendered as text or
// JSON.
type inspectReport struct {
	Sealed         bool                 `json:"sealed"`
	RootKeyID      *uint32              `json:"root_key_id,omitempty"`
	BlockCount     int                  `json:"block_count"`
	Blocks         []blockReport        `json:"blocks"`
	SignatureValid *bool                `json:"signature_valid,omitempty"`
	Authorization  *authorizationReport `json:"authorization,omitempty"`
	QueryResults   []string             `json:"query_results,omitempty"`
}

func buildReport(parsed *token.Biscuit) (*inspectReport, error) {
	codes, err := parsed.BlockCodes()
	if err != nil {
		return nil, err
	}
	revocations := parsed.RevocationIDs()

	report := &inspectReport{
		Sealed:     parsed.Sealed(),
		RootKeyID:  parsed.RootKeyID(),
		BlockCount: parsed.BlockCount(),
		Blocks:     make([]blockReport, len(codes)),
	}
	for i, code := range codes {
		report.Blocks[i] = blockReport{
			Index:        i,
			Code:         code.Source(),
			Context:      code.Context,
			ExternalKey:  code.External,
			RevocationID: revocations[i],
		}
	}
	return report, nil
}

func authorizationReportFrom(result *datalog.AuthorizeResult) *authorizationReport {
	report := &authorizationReport{
		Decision:    result.Decision.String(),
		PolicyIndex: result.PolicyIndex,
	}
	if result.Policy != nil {
		report.Policy = result.Policy.String()
	}
	for _, failed := range result.FailedChecks {
		where := fmt.Sprintf("block %d", failed.Block)
		if failed.Block == datalog.OriginAuthorizer {
			where = "authorizer"
		}
		report.FailedChecks = append(report.FailedChecks,
			fmt.Sprintf("%s check %d: %s", where, failed.Index, failed.Check))
	}
	return report
}

func (r *inspectReport) writeJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

func (r *inspectReport) writeText(w io.Writer) {
	if r.Sealed {
		fmt.Fprintf(w, "sealed biscuit, %d blocks\n", r.BlockCount)
	} else {
		fmt.Fprintf(w, "open biscuit, %d blocks\n", r.BlockCount)
	}
	if r.RootKeyID != nil {
		fmt.Fprintf(w, "root key id: %d\n", *r.RootKeyID)
	}
	for _, block := range r.Blocks {
		if block.Index == 0 {
			fmt.Fprintf(w, "\nblock 0 (authority):\n")
		} else {
			fmt.Fprintf(w, "\nblock %d:\n", block.Index)
		}
		if block.Context != "" {
			fmt.Fprintf(w, "  context: %s\n", block.Context)
		}
		if block.ExternalKey != "" {
			fmt.Fprintf(w, "  external key: %s\n", block.ExternalKey)
		}
		for _, line := range strings.Split(block.Code, "\n") {
			if line == "" {
				continue
			}
			fmt.Fprintf(w, "  %s\n", line)
		}
		fmt.Fprintf(w, "  revocation id: %s\n", block.RevocationID)
	}
	if r.SignatureValid != nil && *r.SignatureValid {
		fmt.Fprintf(w, "\nsignature: verified\n")
	}
	if r.Authorization != nil {
		fmt.Fprintf(w, "\nauthorization: %s", r.Authorization.Decision)
		if r.Authorization.PolicyIndex >= 0 {
			fmt.Fprintf(w, " (policy %d: %s)", r.Authorization.PolicyIndex, r.Authorization.Policy)
		}
		fmt.Fprintln(w)
		for _, failed := range r.Authorization.FailedChecks {
			fmt.Fprintf(w, "  failed: %s\n", failed)
		}
	}
	if r.QueryResults != nil {
		fmt.Fprintf(w, "\nquery results:\n")
		for _, fact := range r.QueryResults {
			fmt.Fprintf(w, "  %s\n", fact)
		}
		if len(r.QueryResults) == 0 {
			fmt.Fprintf(w, "  (none)\n")
		}
	}
}
