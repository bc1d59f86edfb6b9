// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package input

// EnsureSingleStdin rejects an invocation that binds stdin to more
// than one input. It runs before any resolver so the error is
// reported before a single byte of the stream is consumed; otherwise
// the second reader would silently see an empty stream.
//
// The flag parser cannot express this constraint because the
// conflicting arguments live in independent, individually optional
// groups (a token argument and a block-text argument, say).
func EnsureSingleStdin(sources ...Source) error {
	consumers := 0
	for _, source := range sources {
		if source == nil {
			continue
		}
		if source.UsesStdin() {
			consumers++
		}
	}
	if consumers > 1 {
		return ErrMultipleStdinConsumers
	}
	return nil
}
