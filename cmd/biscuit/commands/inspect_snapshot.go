// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/crumbtools/biscuit/cmd/biscuit/cli"
	"github.com/crumbtools/biscuit/lib/datalog"
	"github.com/crumbtools/biscuit/lib/input"
)

// inspectSnapshotCommand prints a dumped authorizer snapshot and
// optionally queries it.
func inspectSnapshotCommand(r *runtime) *cli.Command {
	var (
		configPath string
		rawInput   bool
		queryText  string
		queryAll   string
		params     []string
		limits     limitFlags
		asJSON     bool
		flagSet    *pflag.FlagSet
	)

	return &cli.Command{
		Name:    "inspect-snapshot",
		Summary: "Inspect an authorizer snapshot",
		Description: `Print the contents of a snapshot written by inspect's
--dump-snapshot-to or --dump-policies-snapshot-to. A snapshot carries
no signatures; it is a record of authorizer state, not a token.
Queries run against the snapshot's facts the same way they do against
a live authorizer.`,
		Usage: "biscuit inspect-snapshot [snapshot-file] [flags]",
		Examples: []cli.Example{
			{
				Description: "Show a snapshot's policies and blocks",
				Command:     "biscuit inspect-snapshot state.snapshot",
			},
			{
				Description: "Re-run a query against dumped authorizer state",
				Command:     `biscuit inspect-snapshot state.snapshot --query 'who($name) <- user($name)'`,
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet = pflag.NewFlagSet("inspect-snapshot", pflag.ContinueOnError)
			addConfigFlag(flagSet, &configPath)
			flagSet.BoolVar(&rawInput, "raw-input", false, "read the snapshot as raw binary")
			flagSet.StringVar(&queryText, "query", "", "rule to derive facts from the authority block and authorizer")
			flagSet.StringVar(&queryAll, "query-all", "", "rule to derive facts from every block, trusted or not")
			flagSet.StringSliceVar(&params, "param", nil, "bind a datalog parameter (name[:type]=value, repeatable)")
			limits.register(flagSet)
			flagSet.BoolVar(&asJSON, "json", false, "print a machine-readable report")
			return flagSet
		},
		Run: func(args []string) error {
			cfg, err := r.loadConfig(configPath)
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

			source, err := positionalToken(args, rawInput)
			if err != nil {
				return err
			}
			raw, err := input.ResolveToken(source, r.newStdin())
			if err != nil {
				return err
			}
			snapshot, err := datalog.ParseSnapshot(raw)
			if err != nil {
				return err
			}

			report := snapshotReportFrom(snapshot)

			if queryText != "" || queryAll != "" {
				bindings, err := input.ParseParams(params)
				if err != nil {
					return err
				}
				text, all := queryText, false
				if queryAll != "" {
					text, all = queryAll, true
				}
				facts, err := runQuery(snapshot.Authorizer(), text, bindings, runLimits, all)
				if err != nil {
					return err
				}
				report.QueryResults = make([]string, len(facts))
				for i, fact := range facts {
					report.QueryResults[i] = fact.String()
				}
			}

			if asJSON {
				return report.writeJSON(r.stdout)
			}
			report.writeText(r.stdout)
			return nil
		},
	}
}

// snapshotReport is the rendered form of a snapshot: the authorizer
// side as datalog source, plus the token blocks it had loaded.
type snapshotReport struct {
	CreatedAt    int64    `json:"created_at"`
	Facts        []string `json:"facts,omitempty"`
	Rules        []string `json:"rules,omitempty"`
	Checks       []string `json:"checks,omitempty"`
	Policies     []string `json:"policies,omitempty"`
	Blocks       []string `json:"blocks,omitempty"`
	QueryResults []string `json:"query_results,omitempty"`
}

func snapshotReportFrom(snapshot *datalog.Snapshot) *snapshotReport {
	report := &snapshotReport{CreatedAt: snapshot.CreatedAt}
	for _, fact := range snapshot.Facts {
		report.Facts = append(report.Facts, fact.String())
	}
	for _, rule := range snapshot.Rules {
		report.Rules = append(report.Rules, rule.String())
	}
	for _, check := range snapshot.Checks {
		report.Checks = append(report.Checks, check.String())
	}
	for _, policy := range snapshot.Policies {
		report.Policies = append(report.Policies, policy.String())
	}
	for _, block := range snapshot.Blocks {
		report.Blocks = append(report.Blocks, block.Source())
	}
	return report
}

func (r *snapshotReport) writeJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

func (r *snapshotReport) writeText(w io.Writer) {
	fmt.Fprintf(w, "snapshot, %d blocks\n", len(r.Blocks))
	section := func(name string, entries []string) {
		if len(entries) == 0 {
			return
		}
		fmt.Fprintf(w, "\n%s:\n", name)
		for _, entry := range entries {
			fmt.Fprintf(w, "  %s;\n", entry)
		}
	}
	section("facts", r.Facts)
	section("rules", r.Rules)
	section("checks", r.Checks)
	section("policies", r.Policies)
	for index, block := range r.Blocks {
		if index == 0 {
			fmt.Fprintf(w, "\nblock 0 (authority):\n")
		} else {
			fmt.Fprintf(w, "\nblock %d:\n", index)
		}
		for _, line := range strings.Split(block, "\n") {
			if line == "" {
				continue
			}
			fmt.Fprintf(w, "  %s\n", line)
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
