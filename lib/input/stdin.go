// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"errors"
	"fmt"
	"io"
)

// Errors shared across the package. Resolution failures wrap one of
// these sentinels so callers can classify them with errors.Is.
var (
	ErrStdinConsumed          = errors.New("input: stdin was already consumed")
	ErrMultipleStdinConsumers = errors.New("input: more than one input reads from stdin")
	ErrMalformedKey           = errors.New("input: malformed key encoding")
	ErrMalformedToken         = errors.New("input: malformed token encoding")
	ErrInvalidText            = errors.New("input: input is not valid UTF-8 text")
	ErrEditorFailure          = errors.New("input: editor invocation failed")
)

// Stdin is the process's standard input as a once-readable handle.
// Threading it explicitly through resolver calls keeps the single-read
// constraint visible at every call site; a second read is a hard error
// instead of a silent empty result.
type Stdin struct {
	reader   io.Reader
	consumed bool
}

// NewStdin wraps a reader as the invocation's stdin handle. Production
// callers pass os.Stdin; tests pass a buffer.
func NewStdin(reader io.Reader) *Stdin {
	return &Stdin{reader: reader}
}

// ReadAll consumes the stream. It can succeed at most once.
func (s *Stdin) ReadAll() ([]byte, error) {
	if s.consumed {
		return nil, ErrStdinConsumed
	}
	s.consumed = true
	data, err := io.ReadAll(s.reader)
	if err != nil {
		return nil, fmt.Errorf("input: reading stdin: %w", err)
	}
	return data, nil
}
