// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"errors"
	"testing"
	"time"

	"github.com/crumbtools/biscuit/lib/datalog"
	"github.com/crumbtools/biscuit/lib/keys"
)

func generate(t *testing.T, algorithm keys.Algorithm) *keys.KeyPair {
	t.Helper()
	pair, err := keys.Generate(algorithm)
	if err != nil {
		t.Fatalf("Generate(%v): %v", algorithm, err)
	}
	return pair
}

func blockFromSource(t *testing.T, source string) *BlockBuilder {
	t.Helper()
	program, err := datalog.ParseBlock(source)
	if err != nil {
		t.Fatalf("ParseBlock(%q): %v", source, err)
	}
	return NewBlockBuilder().AddProgram(program)
}

func buildToken(t *testing.T, root *keys.KeyPair, source string) *Biscuit {
	t.Helper()
	token, err := Build(blockFromSource(t, source), root.Private, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return token
}

func TestBuildAndVerify(t *testing.T) {
	for _, algorithm := range []keys.Algorithm{keys.Ed25519, keys.P256} {
		t.Run(algorithm.String(), func(t *testing.T) {
			root := generate(t, algorithm)
			token := buildToken(t, root, `user("alice"); check if resource($r);`)

			if err := token.Verify(root.Public); err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if token.Sealed() {
				t.Error("fresh token reports sealed")
			}
			if token.BlockCount() != 1 {
				t.Errorf("BlockCount = %d, want 1", token.BlockCount())
			}

			other := generate(t, algorithm)
			if err := token.Verify(other.Public); !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("Verify with wrong root = %v, want ErrInvalidSignature", err)
			}
		})
	}
}

func TestRootKeyID(t *testing.T) {
	root := generate(t, keys.Ed25519)
	id := uint32(42)
	token, err := Build(blockFromSource(t, `user("alice");`), root.Private, &id)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got := token.RootKeyID()
	if got == nil || *got != 42 {
		t.Errorf("RootKeyID = %v, want 42", got)
	}

	raw, err := token.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got = parsed.RootKeyID()
	if got == nil || *got != 42 {
		t.Errorf("RootKeyID after round trip = %v, want 42", got)
	}
}

func TestAppend(t *testing.T) {
	root := generate(t, keys.Ed25519)
	token := buildToken(t, root, `user("alice");`)

	attenuated, err := token.Append(blockFromSource(t, `check if operation("read");`))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := attenuated.Verify(root.Public); err != nil {
		t.Fatalf("Verify after append: %v", err)
	}
	if attenuated.BlockCount() != 2 {
		t.Errorf("BlockCount = %d, want 2", attenuated.BlockCount())
	}

	// The original is untouched and still valid.
	if token.BlockCount() != 1 {
		t.Errorf("original BlockCount = %d, want 1", token.BlockCount())
	}
	if err := token.Verify(root.Public); err != nil {
		t.Errorf("Verify original after append: %v", err)
	}

	codes, err := attenuated.BlockCodes()
	if err != nil {
		t.Fatalf("BlockCodes: %v", err)
	}
	if len(codes) != 2 {
		t.Fatalf("BlockCodes returned %d blocks, want 2", len(codes))
	}
	if len(codes[0].Facts) != 1 || codes[0].Facts[0].Predicate.Name != "user" {
		t.Errorf("authority block = %+v", codes[0])
	}
	if len(codes[1].Checks) != 1 {
		t.Errorf("attenuation block = %+v", codes[1])
	}
}

func TestSealPreventsAppend(t *testing.T) {
	root := generate(t, keys.Ed25519)
	token := buildToken(t, root, `user("alice");`)

	sealed, err := token.Seal()
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !sealed.Sealed() {
		t.Error("Sealed() = false after Seal")
	}
	if err := sealed.Verify(root.Public); err != nil {
		t.Fatalf("Verify sealed: %v", err)
	}

	if _, err := sealed.Append(blockFromSource(t, `check if true;`)); !errors.Is(err, ErrSealed) {
		t.Errorf("Append on sealed = %v, want ErrSealed", err)
	}
	if _, err := sealed.ThirdPartyRequest(); !errors.Is(err, ErrSealed) {
		t.Errorf("ThirdPartyRequest on sealed = %v, want ErrSealed", err)
	}
	if _, err := sealed.Seal(); !errors.Is(err, ErrAlreadySealed) {
		t.Errorf("Seal on sealed = %v, want ErrAlreadySealed", err)
	}

	// Sealing survives serialization.
	raw, err := sealed.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !parsed.Sealed() {
		t.Error("parsed token lost its seal")
	}
	if err := parsed.Verify(root.Public); err != nil {
		t.Errorf("Verify parsed sealed: %v", err)
	}
}

func TestThirdPartyBlock(t *testing.T) {
	root := generate(t, keys.Ed25519)
	external := generate(t, keys.Ed25519)
	token := buildToken(t, root, `user("alice");`)

	request, err := token.ThirdPartyRequest()
	if err != nil {
		t.Fatalf("ThirdPartyRequest: %v", err)
	}

	// The request travels as base64 text.
	encoded, err := request.SerializeBase64()
	if err != nil {
		t.Fatalf("SerializeBase64: %v", err)
	}
	received, err := ParseRequestBase64(encoded)
	if err != nil {
		t.Fatalf("ParseRequestBase64: %v", err)
	}

	block, err := received.CreateBlock(external.Private, blockFromSource(t, `check if group("admin");`))
	if err != nil {
		t.Fatalf("CreateBlock: %v", err)
	}
	blockEncoded, err := block.SerializeBase64()
	if err != nil {
		t.Fatalf("block SerializeBase64: %v", err)
	}
	blockReceived, err := ParseThirdPartyBlockBase64(blockEncoded)
	if err != nil {
		t.Fatalf("ParseThirdPartyBlockBase64: %v", err)
	}

	extended, err := token.AppendThirdParty(blockReceived)
	if err != nil {
		t.Fatalf("AppendThirdParty: %v", err)
	}
	if err := extended.Verify(root.Public); err != nil {
		t.Fatalf("Verify after third-party append: %v", err)
	}
	if extended.BlockCount() != 2 {
		t.Errorf("BlockCount = %d, want 2", extended.BlockCount())
	}

	codes, err := extended.BlockCodes()
	if err != nil {
		t.Fatalf("BlockCodes: %v", err)
	}
	if codes[1].External != external.Public.String() {
		t.Errorf("External = %q, want %q", codes[1].External, external.Public.String())
	}
	if codes[0].External != "" {
		t.Errorf("authority block marked external: %q", codes[0].External)
	}

	// Appending more blocks after a third-party block still verifies.
	longer, err := extended.Append(blockFromSource(t, `check if operation("read");`))
	if err != nil {
		t.Fatalf("Append after third-party: %v", err)
	}
	if err := longer.Verify(root.Public); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestThirdPartyBlockStaleRequest(t *testing.T) {
	root := generate(t, keys.Ed25519)
	external := generate(t, keys.Ed25519)
	token := buildToken(t, root, `user("alice");`)

	request, err := token.ThirdPartyRequest()
	if err != nil {
		t.Fatalf("ThirdPartyRequest: %v", err)
	}
	block, err := request.CreateBlock(external.Private, blockFromSource(t, `check if group("admin");`))
	if err != nil {
		t.Fatalf("CreateBlock: %v", err)
	}

	// The token grows a block after the request was issued, so the
	// signed previous-signature no longer matches.
	moved, err := token.Append(blockFromSource(t, `check if true;`))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := moved.AppendThirdParty(block); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("AppendThirdParty with stale request = %v, want ErrInvalidSignature", err)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	root := generate(t, keys.Ed25519)
	token := buildToken(t, root, `user("alice");`)
	attenuated, err := token.Append(blockFromSource(t, `check if operation("read");`))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	encoded, err := attenuated.SerializeBase64()
	if err != nil {
		t.Fatalf("SerializeBase64: %v", err)
	}
	parsed, err := ParseBase64(encoded)
	if err != nil {
		t.Fatalf("ParseBase64: %v", err)
	}
	if err := parsed.Verify(root.Public); err != nil {
		t.Fatalf("Verify after round trip: %v", err)
	}

	// The parsed token is still appendable.
	extended, err := parsed.Append(blockFromSource(t, `check if true;`))
	if err != nil {
		t.Fatalf("Append after round trip: %v", err)
	}
	if err := extended.Verify(root.Public); err != nil {
		t.Errorf("Verify extended: %v", err)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	if _, err := Parse([]byte("not cbor")); !errors.Is(err, ErrMalformedToken) {
		t.Errorf("Parse(garbage) = %v, want ErrMalformedToken", err)
	}
	if _, err := ParseBase64("***"); !errors.Is(err, ErrMalformedToken) {
		t.Errorf("ParseBase64(garbage) = %v, want ErrMalformedToken", err)
	}
	if _, err := ParseRequest([]byte("not cbor")); !errors.Is(err, ErrMalformedRequest) {
		t.Errorf("ParseRequest(garbage) = %v, want ErrMalformedRequest", err)
	}
	if _, err := ParseThirdPartyBlock([]byte("not cbor")); !errors.Is(err, ErrMalformedBlock) {
		t.Errorf("ParseThirdPartyBlock(garbage) = %v, want ErrMalformedBlock", err)
	}
}

func TestRevocationIDs(t *testing.T) {
	root := generate(t, keys.Ed25519)
	token := buildToken(t, root, `user("alice");`)
	attenuated, err := token.Append(blockFromSource(t, `check if operation("read");`))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	ids := attenuated.RevocationIDs()
	if len(ids) != 2 {
		t.Fatalf("RevocationIDs returned %d ids, want 2", len(ids))
	}
	for index, id := range ids {
		if len(id) != 64 {
			t.Errorf("id %d has length %d, want 64 hex characters", index, len(id))
		}
	}
	if ids[0] == ids[1] {
		t.Error("revocation ids collide across blocks")
	}

	// The authority block's id is stable across attenuation.
	if token.RevocationIDs()[0] != ids[0] {
		t.Error("authority revocation id changed after append")
	}
}

func TestExpirationCheck(t *testing.T) {
	root := generate(t, keys.Ed25519)
	expiry := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	builder := blockFromSource(t, `user("alice");`).CheckExpiration(expiry)
	token, err := Build(builder, root.Private, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	codes, err := token.BlockCodes()
	if err != nil {
		t.Fatalf("BlockCodes: %v", err)
	}
	authorize := func(now time.Time) datalog.Decision {
		t.Helper()
		authorizer := datalog.NewAuthorizer()
		authorizer.AddFact(datalog.Fact{Predicate: datalog.Predicate{
			Name:  "time",
			Terms: []datalog.Term{datalog.DateTerm(now)},
		}})
		program, err := datalog.Parse(`allow if true;`)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		authorizer.AddProgram(program)
		authorizer.SetBlocks(codes)
		result, err := authorizer.Authorize(datalog.DefaultRunLimits)
		if err != nil {
			t.Fatalf("Authorize: %v", err)
		}
		return result.Decision
	}

	if got := authorize(expiry.Add(-time.Hour)); got != datalog.Allow {
		t.Errorf("before expiry: Decision = %v, want Allow", got)
	}
	if got := authorize(expiry.Add(time.Hour)); got != datalog.Deny {
		t.Errorf("after expiry: Decision = %v, want Deny", got)
	}
}
