// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/crumbtools/biscuit/cmd/biscuit/commands"
)

func main() {
	if err := run(); err != nil {
		// A denied authorization has already printed its report and
		// carries the exit code it wants. Don't print a redundant
		// "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}
