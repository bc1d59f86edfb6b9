// Copyright 2026 The Biscuit Authors
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"errors"
	"fmt"

	"github.com/crumbtools/biscuit/lib/codec"
	"github.com/crumbtools/biscuit/lib/keys"
)

// Errors specific to the third-party exchange.
var (
	ErrMalformedRequest = errors.New("token: malformed third-party block request")
	ErrMalformedBlock   = errors.New("token: malformed third-party block")
)

// Request is what a token holder sends to a third party that should
// contribute a block. It pins the last block's signature so the
// returned block only attaches to this exact token state.
type Request struct {
	wire requestWire
}

type requestWire struct {
	PreviousSignature []byte `cbor:"1,keyasint"`
}

// ThirdPartyRequest derives a request from the token's current state.
// Sealed tokens cannot accept new blocks, so no request can be made
// for them.
func (t *Biscuit) ThirdPartyRequest() (*Request, error) {
	if t.Sealed() {
		return nil, ErrSealed
	}
	return &Request{wire: requestWire{PreviousSignature: t.lastBlock().Signature}}, nil
}

// Serialize encodes the request as CBOR.
func (r *Request) Serialize() ([]byte, error) {
	encoded, err := codec.Marshal(r.wire)
	if err != nil {
		return nil, fmt.Errorf("token: encoding request: %w", err)
	}
	return encoded, nil
}

// SerializeBase64 encodes the request with the shared base64 alphabet.
func (r *Request) SerializeBase64() (string, error) {
	raw, err := r.Serialize()
	if err != nil {
		return "", err
	}
	return codec.EncodeBase64(raw), nil
}

// ParseRequest decodes a third-party block request.
func ParseRequest(data []byte) (*Request, error) {
	var wire requestWire
	if err := codec.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if len(wire.PreviousSignature) == 0 {
		return nil, fmt.Errorf("%w: missing previous signature", ErrMalformedRequest)
	}
	return &Request{wire: wire}, nil
}

// ParseRequestBase64 decodes a request from base64 text.
func ParseRequestBase64(text string) (*Request, error) {
	raw, err := codec.DecodeBase64(text)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrMalformedRequest, err)
	}
	return ParseRequest(raw)
}

// ThirdPartyBlock is a block signed by an external key against a
// request, ready to be appended by the token holder.
type ThirdPartyBlock struct {
	wire thirdPartyBlockWire
}

type thirdPartyBlockWire struct {
	Payload     []byte  `cbor:"1,keyasint"`
	ExternalKey wireKey `cbor:"2,keyasint"`
	Signature   []byte  `cbor:"3,keyasint"`
}

// CreateBlock signs the builder's content with the third party's
// private key. The signature covers the payload and the request's
// pinned previous signature.
func (r *Request) CreateBlock(external *keys.PrivateKey, builder *BlockBuilder) (*ThirdPartyBlock, error) {
	payload, err := codec.Marshal(builder.payload())
	if err != nil {
		return nil, fmt.Errorf("token: encoding third-party block: %w", err)
	}

	message := make([]byte, 0, len(payload)+len(r.wire.PreviousSignature))
	message = append(message, payload...)
	message = append(message, r.wire.PreviousSignature...)
	signature, err := external.Sign(message)
	if err != nil {
		return nil, fmt.Errorf("token: signing third-party block: %w", err)
	}

	return &ThirdPartyBlock{wire: thirdPartyBlockWire{
		Payload:     payload,
		ExternalKey: wireKeyFrom(external.Public()),
		Signature:   signature,
	}}, nil
}

// Serialize encodes the third-party block as CBOR.
func (b *ThirdPartyBlock) Serialize() ([]byte, error) {
	encoded, err := codec.Marshal(b.wire)
	if err != nil {
		return nil, fmt.Errorf("token: encoding third-party block: %w", err)
	}
	return encoded, nil
}

// SerializeBase64 encodes the block with the shared base64 alphabet.
func (b *ThirdPartyBlock) SerializeBase64() (string, error) {
	raw, err := b.Serialize()
	if err != nil {
		return "", err
	}
	return codec.EncodeBase64(raw), nil
}

// ParseThirdPartyBlock decodes a signed third-party block.
func ParseThirdPartyBlock(data []byte) (*ThirdPartyBlock, error) {
	var wire thirdPartyBlockWire
	if err := codec.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBlock, err)
	}
	if len(wire.Payload) == 0 || len(wire.Signature) == 0 {
		return nil, fmt.Errorf("%w: missing payload or signature", ErrMalformedBlock)
	}
	return &ThirdPartyBlock{wire: wire}, nil
}

// ParseThirdPartyBlockBase64 decodes a third-party block from base64
// text.
func ParseThirdPartyBlockBase64(text string) (*ThirdPartyBlock, error) {
	raw, err := codec.DecodeBase64(text)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrMalformedBlock, err)
	}
	return ParseThirdPartyBlock(raw)
}

// AppendThirdParty appends an already-signed third-party block. The
// external signature is checked against this token's last block
// before the holder's proof key countersigns the append.
func (t *Biscuit) AppendThirdParty(block *ThirdPartyBlock) (*Biscuit, error) {
	proof, err := t.proofKey()
	if err != nil {
		return nil, err
	}

	external, err := block.wire.ExternalKey.publicKey()
	if err != nil {
		return nil, fmt.Errorf("%w: external key: %v", ErrMalformedBlock, err)
	}
	previous := t.lastBlock().Signature
	message := make([]byte, 0, len(block.wire.Payload)+len(previous))
	message = append(message, block.wire.Payload...)
	message = append(message, previous...)
	if !external.Verify(message, block.wire.Signature) {
		return nil, fmt.Errorf("%w: third-party block was signed for a different token state", ErrInvalidSignature)
	}

	next, err := keys.Generate(proof.Algorithm())
	if err != nil {
		return nil, fmt.Errorf("token: generating ephemeral key: %w", err)
	}
	nextKey := wireKeyFrom(next.Public)

	signature, err := proof.Sign(signedMessage(block.wire.Payload, block.wire.Signature, nextKey))
	if err != nil {
		return nil, fmt.Errorf("token: signing appended block: %w", err)
	}

	externalKey := block.wire.ExternalKey
	extended := t.wire
	extended.Blocks = append(extended.Blocks[:len(extended.Blocks):len(extended.Blocks)], signedBlock{
		Payload:           block.wire.Payload,
		NextKey:           nextKey,
		Signature:         signature,
		ExternalKey:       &externalKey,
		ExternalSignature: block.wire.Signature,
	})
	extended.ProofSecret = next.Private.Bytes()
	return &Biscuit{wire: extended}, nil
}
