// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"fmt"
	"io"

	"github.com/crumbtools/biscuit/lib/codec"
)

// WriteResult emits a command's final payload: the bytes unchanged
// when raw is set, base64 text with a trailing newline otherwise.
// Every command that produces token, request, or block bytes writes
// through this one function.
func WriteResult(w io.Writer, payload []byte, raw bool) error {
	if raw {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("input: writing result: %w", err)
		}
		return nil
	}
	if _, err := fmt.Fprintln(w, codec.EncodeBase64(payload)); err != nil {
		return fmt.Errorf("input: writing result: %w", err)
	}
	return nil
}
