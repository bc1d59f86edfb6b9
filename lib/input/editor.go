// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Editor runs the user's text editor on a temporary buffer and
// returns what they wrote.
type Editor struct {
	// Command overrides editor discovery, for configuration and
	// tests. Empty means consult $VISUAL, then $EDITOR, then vi.
	Command string
}

// Edit opens the editor on an empty temporary file and returns the
// final buffer. An abnormal editor exit or an empty buffer fails with
// ErrEditorFailure.
func (e *Editor) Edit() (string, error) {
	command := e.command()
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: no editor configured", ErrEditorFailure)
	}

	buffer, err := os.CreateTemp("", "*.biscuit-datalog")
	if err != nil {
		return "", fmt.Errorf("input: creating editor buffer: %w", err)
	}
	path := buffer.Name()
	buffer.Close()
	defer os.Remove(path)

	run := exec.Command(fields[0], append(fields[1:], path)...)
	run.Stdin = os.Stdin
	run.Stdout = os.Stdout
	run.Stderr = os.Stderr
	if err := run.Run(); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrEditorFailure, command, err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("input: reading editor buffer: %w", err)
	}
	text := strings.TrimSpace(string(content))
	if text == "" {
		return "", fmt.Errorf("%w: the editor buffer is empty", ErrEditorFailure)
	}
	return text, nil
}

func (e *Editor) command() string {
	if e != nil && e.Command != "" {
		return e.Command
	}
	if visual := os.Getenv("VISUAL"); visual != "" {
		return visual
	}
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}
	return "vi"
}
