// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/crumbtools/biscuit/lib/datalog"
	"github.com/crumbtools/biscuit/lib/keys"
)

// ErrInvalidParam marks a --param argument that does not parse.
var ErrInvalidParam = errors.New("input: invalid parameter")

// ParseParam parses one name[:type]=value parameter binding. The type
// defaults to string; integer, bool, date, bytes, and pubkey select
// the other term kinds. Bytes values carry a hex: prefix, public keys
// the usual algorithm-prefixed hex.
func ParseParam(text string) (string, datalog.Term, error) {
	spec, value, found := strings.Cut(text, "=")
	if !found {
		return "", datalog.Term{}, fmt.Errorf("%w: %q has no '=' separator", ErrInvalidParam, text)
	}
	name, kind, typed := strings.Cut(spec, ":")
	if name == "" {
		return "", datalog.Term{}, fmt.Errorf("%w: %q has an empty name", ErrInvalidParam, text)
	}
	if !typed {
		kind = "string"
	}

	switch kind {
	case "string":
		return name, datalog.StringTerm(value), nil
	case "integer":
		number, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return "", datalog.Term{}, fmt.Errorf("%w: %q: %v", ErrInvalidParam, text, err)
		}
		return name, datalog.IntTerm(number), nil
	case "bool":
		truth, err := strconv.ParseBool(value)
		if err != nil {
			return "", datalog.Term{}, fmt.Errorf("%w: %q: %v", ErrInvalidParam, text, err)
		}
		return name, datalog.BoolTerm(truth), nil
	case "date":
		instant, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return "", datalog.Term{}, fmt.Errorf("%w: %q: %v", ErrInvalidParam, text, err)
		}
		return name, datalog.DateTerm(instant), nil
	case "bytes":
		encoded, found := strings.CutPrefix(value, "hex:")
		if !found {
			return "", datalog.Term{}, fmt.Errorf("%w: %q: bytes values need a hex: prefix", ErrInvalidParam, text)
		}
		raw, err := hex.DecodeString(encoded)
		if err != nil {
			return "", datalog.Term{}, fmt.Errorf("%w: %q: %v", ErrInvalidParam, text, err)
		}
		return name, datalog.BytesTerm(raw), nil
	case "pubkey":
		key, err := keys.ParsePublicKey(value)
		if err != nil {
			return "", datalog.Term{}, fmt.Errorf("%w: %q: %v", ErrInvalidParam, text, err)
		}
		return name, datalog.PublicKeyTerm(key.String()), nil
	default:
		return "", datalog.Term{}, fmt.Errorf("%w: %q: unknown type %q", ErrInvalidParam, text, kind)
	}
}

// ParseParams parses a repeated --param flag into a binding map. A
// name given twice keeps its last value.
func ParseParams(texts []string) (map[string]datalog.Term, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	bindings := make(map[string]datalog.Term, len(texts))
	for _, text := range texts {
		name, term, err := ParseParam(text)
		if err != nil {
			return nil, err
		}
		bindings[name] = term
	}
	return bindings, nil
}
