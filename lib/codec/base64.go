// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import "encoding/base64"

// Base64 is the URL-safe unpadded alphabet every serialized artifact
// uses (tokens, requests, blocks, snapshots). Tokens travel in URLs
// and HTTP headers, where the standard alphabet's '+' and '/' and
// trailing '=' padding cause trouble.
var Base64 = base64.URLEncoding.WithPadding(base64.NoPadding)

// EncodeBase64 encodes payload with the shared alphabet.
func EncodeBase64(payload []byte) string {
	return Base64.EncodeToString(payload)
}

// DecodeBase64 decodes text with the shared alphabet. Surrounding
// whitespace is not tolerated; callers trim before decoding.
func DecodeBase64(text string) ([]byte, error) {
	return Base64.DecodeString(text)
}
