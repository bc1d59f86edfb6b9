// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"errors"
	"testing"
	"time"
)

func TestParseTTL(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		text string
		want time.Time
	}{
		{"2026-04-01T00:00:00Z", time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)},
		{"2026-04-01T02:00:00+02:00", time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)},
		{"300s", now.Add(300 * time.Second)},
		{"15m", now.Add(15 * time.Minute)},
		{"12h", now.Add(12 * time.Hour)},
		{"1d", now.Add(24 * time.Hour)},
		{"2w", now.Add(14 * 24 * time.Hour)},
	}
	for _, test := range tests {
		got, err := ParseTTL(test.text, now)
		if err != nil {
			t.Errorf("ParseTTL(%q): %v", test.text, err)
			continue
		}
		if !got.Equal(test.want) {
			t.Errorf("ParseTTL(%q) = %v, want %v", test.text, got, test.want)
		}
	}
}

func TestParseTTLRejectsGarbage(t *testing.T) {
	for _, text := range []string{"", "soon", "5x", "-1d", "d", "1.5h"} {
		if _, err := ParseTTL(text, time.Now()); !errors.Is(err, ErrInvalidTTL) {
			t.Errorf("ParseTTL(%q) = %v, want ErrInvalidTTL", text, err)
		}
	}
}
