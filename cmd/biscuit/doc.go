// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

// Biscuit is the CLI for biscuit authorization tokens. It provides
// subcommands for key pair management (keypair), token creation and
// offline attenuation (generate, attenuate, seal), third-party block
// exchange (generate-third-party-block-request,
// generate-third-party-block, append-third-party-block), and token
// inspection and authorization (inspect, inspect-snapshot).
package main
