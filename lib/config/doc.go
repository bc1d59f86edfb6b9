// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the biscuit CLI.
//
// Configuration is loaded from a single file specified by:
//   - BISCUIT_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. A missing file is not
// an error; the tool is fully usable with built-in defaults, and every
// config value can be overridden per invocation by a flag.
package config
