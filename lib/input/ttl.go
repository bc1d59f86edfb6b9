// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidTTL marks an expiration argument that is neither an
// RFC3339 timestamp nor a duration literal.
var ErrInvalidTTL = errors.New("input: invalid ttl")

// ParseTTL turns an expiration argument into an absolute instant. An
// RFC3339 timestamp is taken as-is; otherwise the text is read as a
// duration literal (300s, 15m, 12h, 1d, 2w) added to now. RFC3339 is
// tried first, which disambiguates the two forms.
func ParseTTL(text string, now time.Time) (time.Time, error) {
	if instant, err := time.Parse(time.RFC3339, text); err == nil {
		return instant, nil
	}
	duration, err := parseDuration(text)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(duration), nil
}

func parseDuration(text string) (time.Duration, error) {
	if len(text) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTTL, text)
	}
	count, err := strconv.ParseInt(text[:len(text)-1], 10, 64)
	if err != nil || count < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTTL, text)
	}
	var unit time.Duration
	switch text[len(text)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("%w: %q (want a unit of s, m, h, d, or w)", ErrInvalidTTL, text)
	}
	return time.Duration(count) * unit, nil
}
