// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/crumbtools/biscuit/lib/codec"
	"github.com/crumbtools/biscuit/lib/datalog"
	"github.com/crumbtools/biscuit/lib/keys"
)

// Errors returned by token operations.
var (
	ErrMalformedToken   = errors.New("token: malformed token")
	ErrInvalidSignature = errors.New("token: invalid signature")
	ErrSealed           = errors.New("token: token is sealed, no further blocks can be appended")
	ErrAlreadySealed    = errors.New("token: token is already sealed")
)

// wireKey is a public key on the wire: algorithm tag plus raw bytes.
type wireKey struct {
	Algorithm uint8  `cbor:"1,keyasint"`
	Bytes     []byte `cbor:"2,keyasint"`
}

func wireKeyFrom(public *keys.PublicKey) wireKey {
	return wireKey{Algorithm: uint8(public.Algorithm()), Bytes: public.Bytes()}
}

func (k wireKey) publicKey() (*keys.PublicKey, error) {
	return keys.PublicKeyFromBytes(keys.Algorithm(k.Algorithm), k.Bytes)
}

// blockPayload is the signed content of one block. It is serialized
// once at signing time and kept verbatim thereafter: the signature
// covers these exact bytes.
type blockPayload struct {
	Facts   []datalog.Fact  `cbor:"1,keyasint,omitempty"`
	Rules   []datalog.Rule  `cbor:"2,keyasint,omitempty"`
	Checks  []datalog.Check `cbor:"3,keyasint,omitempty"`
	Context string          `cbor:"4,keyasint,omitempty"`
	Version uint32          `cbor:"5,keyasint"`
}

// signedBlock is one link of the chain. Signature is by the previous
// key (the root key for the authority block, the previous block's
// ephemeral NextKey otherwise) over payload, external signature if
// present, and NextKey.
type signedBlock struct {
	Payload           []byte  `cbor:"1,keyasint"`
	NextKey           wireKey `cbor:"2,keyasint"`
	Signature         []byte  `cbor:"3,keyasint"`
	ExternalKey       *wireKey `cbor:"4,keyasint,omitempty"`
	ExternalSignature []byte  `cbor:"5,keyasint,omitempty"`
}

// wireToken is the serialized token. Exactly one of ProofSecret
// (open) or ProofSignature (sealed) is set.
type wireToken struct {
	RootKeyID      *uint32       `cbor:"1,keyasint,omitempty"`
	Authority      signedBlock   `cbor:"2,keyasint"`
	Blocks         []signedBlock `cbor:"3,keyasint,omitempty"`
	ProofSecret    []byte        `cbor:"4,keyasint,omitempty"`
	ProofSignature []byte        `cbor:"5,keyasint,omitempty"`
}

// Biscuit is a decoded token.
type Biscuit struct {
	wire wireToken
}

// signedMessage assembles the byte string a block signature covers.
func signedMessage(payload, externalSignature []byte, nextKey wireKey) []byte {
	message := make([]byte, 0, len(payload)+len(externalSignature)+1+len(nextKey.Bytes))
	message = append(message, payload...)
	message = append(message, externalSignature...)
	message = append(message, nextKey.Algorithm)
	message = append(message, nextKey.Bytes...)
	return message
}

// Build signs an authority block with the root private key, producing
// a fresh open token. The ephemeral next key uses the root key's
// algorithm.
func Build(builder *BlockBuilder, root *keys.PrivateKey, rootKeyID *uint32) (*Biscuit, error) {
	payload, err := codec.Marshal(builder.payload())
	if err != nil {
		return nil, fmt.Errorf("token: encoding authority block: %w", err)
	}

	next, err := keys.Generate(root.Algorithm())
	if err != nil {
		return nil, fmt.Errorf("token: generating ephemeral key: %w", err)
	}
	nextKey := wireKeyFrom(next.Public)

	signature, err := root.Sign(signedMessage(payload, nil, nextKey))
	if err != nil {
		return nil, fmt.Errorf("token: signing authority block: %w", err)
	}

	return &Biscuit{wire: wireToken{
		RootKeyID:   rootKeyID,
		Authority:   signedBlock{Payload: payload, NextKey: nextKey, Signature: signature},
		ProofSecret: next.Private.Bytes(),
	}}, nil
}

// lastBlock returns the final signed block of the chain.
func (t *Biscuit) lastBlock() *signedBlock {
	if len(t.wire.Blocks) == 0 {
		return &t.wire.Authority
	}
	return &t.wire.Blocks[len(t.wire.Blocks)-1]
}

// proofKey reconstructs the ephemeral private key held in the proof.
func (t *Biscuit) proofKey() (*keys.PrivateKey, error) {
	if t.Sealed() {
		return nil, ErrSealed
	}
	last := t.lastBlock()
	private, err := keys.PrivateKeyFromBytes(keys.Algorithm(last.NextKey.Algorithm), t.wire.ProofSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: proof secret: %v", ErrMalformedToken, err)
	}
	return private, nil
}

// Append signs a new attenuation block with the token's proof key and
// returns the extended token. The receiver is unchanged.
func (t *Biscuit) Append(builder *BlockBuilder) (*Biscuit, error) {
	proof, err := t.proofKey()
	if err != nil {
		return nil, err
	}

	payload, err := codec.Marshal(builder.payload())
	if err != nil {
		return nil, fmt.Errorf("token: encoding block: %w", err)
	}

	next, err := keys.Generate(proof.Algorithm())
	if err != nil {
		return nil, fmt.Errorf("token: generating ephemeral key: %w", err)
	}
	nextKey := wireKeyFrom(next.Public)

	signature, err := proof.Sign(signedMessage(payload, nil, nextKey))
	if err != nil {
		return nil, fmt.Errorf("token: signing block: %w", err)
	}

	extended := t.wire
	extended.Blocks = append(extended.Blocks[:len(extended.Blocks):len(extended.Blocks)],
		signedBlock{Payload: payload, NextKey: nextKey, Signature: signature})
	extended.ProofSecret = next.Private.Bytes()
	return &Biscuit{wire: extended}, nil
}

// Seal converts the open proof into a final signature over the last
// block's signature, preventing any further append.
func (t *Biscuit) Seal() (*Biscuit, error) {
	if t.Sealed() {
		return nil, ErrAlreadySealed
	}
	proof, err := t.proofKey()
	if err != nil {
		return nil, err
	}
	signature, err := proof.Sign(t.lastBlock().Signature)
	if err != nil {
		return nil, fmt.Errorf("token: sealing: %w", err)
	}

	sealed := t.wire
	sealed.ProofSecret = nil
	sealed.ProofSignature = signature
	return &Biscuit{wire: sealed}, nil
}

// Sealed reports whether the token carries a final signature instead
// of an open proof.
func (t *Biscuit) Sealed() bool {
	return len(t.wire.ProofSignature) > 0
}

// RootKeyID returns the optional root key selection hint.
func (t *Biscuit) RootKeyID() *uint32 {
	return t.wire.RootKeyID
}

// BlockCount returns the number of blocks including the authority.
func (t *Biscuit) BlockCount() int {
	return 1 + len(t.wire.Blocks)
}

// Verify walks the signature chain from the root public key through
// every block, then checks the proof. A sealed token's final
// signature and an open token's proof secret are both checked against
// the last block.
func (t *Biscuit) Verify(root *keys.PublicKey) error {
	current := root
	for index, block := range t.allBlocks() {
		if block.ExternalKey != nil {
			external, err := block.ExternalKey.publicKey()
			if err != nil {
				return fmt.Errorf("%w: block %d external key: %v", ErrMalformedToken, index, err)
			}
			// The external signature covers the payload and the
			// previous block's signature, binding the third-party
			// block to the exact token state it was requested for.
			previous := t.previousSignature(index)
			externalMessage := append(append([]byte{}, block.Payload...), previous...)
			if !external.Verify(externalMessage, block.ExternalSignature) {
				return fmt.Errorf("%w: block %d third-party signature", ErrInvalidSignature, index)
			}
		}
		if !current.Verify(signedMessage(block.Payload, block.ExternalSignature, block.NextKey), block.Signature) {
			return fmt.Errorf("%w: block %d", ErrInvalidSignature, index)
		}
		next, err := block.NextKey.publicKey()
		if err != nil {
			return fmt.Errorf("%w: block %d next key: %v", ErrMalformedToken, index, err)
		}
		current = next
	}

	last := t.lastBlock()
	if t.Sealed() {
		if !current.Verify(last.Signature, t.wire.ProofSignature) {
			return fmt.Errorf("%w: seal signature", ErrInvalidSignature)
		}
		return nil
	}

	proof, err := t.proofKey()
	if err != nil {
		return err
	}
	if !proof.Public().Equal(current) {
		return fmt.Errorf("%w: proof secret does not match the last block key", ErrInvalidSignature)
	}
	return nil
}

// allBlocks returns authority plus attenuation blocks in chain order.
func (t *Biscuit) allBlocks() []signedBlock {
	blocks := make([]signedBlock, 0, t.BlockCount())
	blocks = append(blocks, t.wire.Authority)
	blocks = append(blocks, t.wire.Blocks...)
	return blocks
}

// previousSignature returns the signature of the block before index
// in the chain (the authority block has no predecessor and is never
// external).
func (t *Biscuit) previousSignature(index int) []byte {
	if index == 0 {
		return nil
	}
	if index == 1 {
		return t.wire.Authority.Signature
	}
	return t.wire.Blocks[index-2].Signature
}

// BlockCodes decodes every block payload into its datalog content,
// in chain order, for authorization and inspection.
func (t *Biscuit) BlockCodes() ([]datalog.BlockCode, error) {
	blocks := t.allBlocks()
	codes := make([]datalog.BlockCode, len(blocks))
	for index, block := range blocks {
		var payload blockPayload
		if err := codec.Unmarshal(block.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: block %d payload: %v", ErrMalformedToken, index, err)
		}
		codes[index] = datalog.BlockCode{
			Facts:   payload.Facts,
			Rules:   payload.Rules,
			Checks:  payload.Checks,
			Context: payload.Context,
		}
		if block.ExternalKey != nil {
			external, err := block.ExternalKey.publicKey()
			if err != nil {
				return nil, fmt.Errorf("%w: block %d external key: %v", ErrMalformedToken, index, err)
			}
			codes[index].External = external.String()
		}
	}
	return codes, nil
}

// RevocationIDs returns one identifier per block: the BLAKE3 digest
// of the block signature. Publishing an identifier revokes every
// token derived from that block.
func (t *Biscuit) RevocationIDs() []string {
	blocks := t.allBlocks()
	ids := make([]string, len(blocks))
	for index, block := range blocks {
		digest := blake3.Sum256(block.Signature)
		ids[index] = fmt.Sprintf("%x", digest)
	}
	return ids
}

// Serialize encodes the token as deterministic CBOR.
func (t *Biscuit) Serialize() ([]byte, error) {
	encoded, err := codec.Marshal(t.wire)
	if err != nil {
		return nil, fmt.Errorf("token: encoding token: %w", err)
	}
	return encoded, nil
}

// SerializeBase64 encodes the token with the shared base64 alphabet.
func (t *Biscuit) SerializeBase64() (string, error) {
	raw, err := t.Serialize()
	if err != nil {
		return "", err
	}
	return codec.EncodeBase64(raw), nil
}

// Parse decodes a token from its CBOR bytes. Structural validation
// only; signature verification requires the root public key and is a
// separate step.
func Parse(data []byte) (*Biscuit, error) {
	var wire wireToken
	if err := codec.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if len(wire.Authority.Payload) == 0 {
		return nil, fmt.Errorf("%w: missing authority block", ErrMalformedToken)
	}
	hasSecret := len(wire.ProofSecret) > 0
	hasSignature := len(wire.ProofSignature) > 0
	if hasSecret == hasSignature {
		return nil, fmt.Errorf("%w: token must carry exactly one proof", ErrMalformedToken)
	}
	return &Biscuit{wire: wire}, nil
}

// ParseBase64 decodes a token from base64 text.
func ParseBase64(text string) (*Biscuit, error) {
	raw, err := codec.DecodeBase64(text)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrMalformedToken, err)
	}
	return Parse(raw)
}
