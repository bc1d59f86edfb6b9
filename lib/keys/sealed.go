// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package keys

import (
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"
)

// Seal encrypts a private key under a passphrase using age scrypt
// encryption. The plaintext is the prefixed hex string form, so the
// algorithm survives the round trip without a side channel.
//
// Passphrase prompting is the caller's concern; this package never
// touches the terminal.
func Seal(private *PrivateKey, passphrase string) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("keys: creating scrypt recipient: %w", err)
	}

	var sealed bytes.Buffer
	writer, err := age.Encrypt(&sealed, recipient)
	if err != nil {
		return nil, fmt.Errorf("keys: starting age encryption: %w", err)
	}
	if _, err := io.WriteString(writer, private.String()); err != nil {
		return nil, fmt.Errorf("keys: writing sealed key: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("keys: finalizing sealed key: %w", err)
	}
	return sealed.Bytes(), nil
}

// Unseal decrypts an age-sealed private key file. A wrong passphrase
// surfaces as an age decryption error, not a key parse error.
func Unseal(sealed []byte, passphrase string) (*PrivateKey, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("keys: creating scrypt identity: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(sealed), identity)
	if err != nil {
		return nil, fmt.Errorf("keys: unsealing private key: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("keys: reading unsealed key: %w", err)
	}
	return ParsePrivateKey(string(plaintext))
}
