// Package scheme defines the per-chain-family signature schemes the engine
// can generate keys for and sign with.
//
// A Scheme binds a curve to a challenge derivation, a canonical public key
// encoding, and a wire signature format matching what the target chain's
// on-chain verifier expects. Schemes are pure: all ceremony state lives in
// the protocol layers.
package scheme

import (
	"errors"
	"fmt"

	"github.com/fluxline/multisig/pkg/math/curve"
)

var (
	// ErrMalformedSignature indicates a signature that could not be parsed at
	// all: wrong length, or a component outside its valid range.
	ErrMalformedSignature = errors.New("scheme: malformed signature")
	// ErrSignatureInvalid indicates a well-formed signature which does not
	// verify against the given key and payload.
	ErrSignatureInvalid = errors.New("scheme: signature does not verify")
)

// Scheme describes one chain family's Schnorr-style signature scheme.
//
// All schemes share the verification equation [z]⋅G = R + [c]⋅Y; they differ
// in how the challenge c is derived, how keys and signatures are encoded,
// and which aggregate keys they accept.
type Scheme interface {
	// Name is a byte-stable identifier, used for routing and as part of
	// storage keys. It must never change across versions.
	Name() string
	Curve() curve.Curve

	// PubKeyBytes returns the canonical encoding of an aggregate public key,
	// matching the on-chain representation.
	PubKeyBytes(public curve.Point) []byte

	// KeyNeedsNegation reports whether a freshly aggregated key must be
	// negated before use, for schemes whose key encoding fixes the y
	// parity. Keygen negates the entire sharing identically on every node.
	KeyNeedsNegation(public curve.Point) bool

	// IsKeyCompatible reports whether a freshly aggregated key (after any
	// negation) satisfies the scheme's chain-specific constraints. Since no
	// participant controls the aggregate, an incompatible key is nobody's
	// fault: callers must retry with a fresh ceremony.
	IsKeyCompatible(public curve.Point) bool

	// NonceNeedsNegation reports whether signers must negate their nonces
	// for the given aggregate nonce, for schemes which transmit only part
	// of the nonce point.
	NonceNeedsNegation(nonce curve.Point) bool

	// Challenge derives the challenge scalar c binding the aggregate nonce,
	// the aggregate key and the payload.
	Challenge(nonce curve.Point, public curve.Point, payload []byte) curve.Scalar

	// BuildSignature encodes the aggregate (R, z) pair into the chain's wire
	// signature format.
	BuildSignature(nonce curve.Point, z curve.Scalar) []byte

	// VerifySignature checks a wire signature against a public key and
	// payload. It returns an error wrapping ErrMalformedSignature or
	// ErrSignatureInvalid.
	VerifySignature(signature []byte, public curve.Point, payload []byte) error

	// ValidatePayload rejects payloads the chain cannot sign, before any
	// ceremony starts.
	ValidatePayload(payload []byte) error

	// MaxSigningPayloads is the number of payloads one signing ceremony may
	// carry. Chains with many independent inputs per transaction batch
	// payloads to amortize the interactive rounds.
	MaxSigningPayloads() int

	// SigningPayloadForTest returns a valid payload used by key verification
	// ceremonies and tests.
	SigningPayloadForTest() []byte
}

// ByName returns the scheme with the given byte-stable name.
func ByName(name string) (Scheme, error) {
	for _, s := range All() {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("scheme: unknown scheme %q", name)
}

// All returns all supported schemes.
func All() []Scheme {
	return []Scheme{Bitcoin{}, Ethereum{}, Polkadot{}, Ristretto{}}
}
