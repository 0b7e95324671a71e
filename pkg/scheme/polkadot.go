package scheme

import (
	"crypto/sha512"
	"fmt"

	"github.com/fluxline/multisig/pkg/math/curve"
)

// Polkadot implements Ed25519 signatures with the challenge derivation of
// RFC 8032, producing signatures the Polkadot runtime accepts for ed25519
// accounts.
type Polkadot struct{}

func (Polkadot) Name() string {
	return "polkadot"
}

func (Polkadot) Curve() curve.Curve {
	return curve.Edwards25519{}
}

func (Polkadot) PubKeyBytes(public curve.Point) []byte {
	out, _ := public.MarshalBinary()
	return out
}

func (Polkadot) KeyNeedsNegation(curve.Point) bool {
	return false
}

func (Polkadot) IsKeyCompatible(public curve.Point) bool {
	return !public.IsIdentity()
}

func (Polkadot) NonceNeedsNegation(curve.Point) bool {
	return false
}

func (p Polkadot) Challenge(nonce curve.Point, public curve.Point, payload []byte) curve.Scalar {
	h := sha512.New()
	rBytes, _ := nonce.MarshalBinary()
	h.Write(rBytes)
	h.Write(p.PubKeyBytes(public))
	h.Write(payload)
	return curve.Edwards25519{}.FromUniformBytes(h.Sum(nil))
}

// BuildSignature returns the 64 byte signature R ‖ s.
func (Polkadot) BuildSignature(nonce curve.Point, z curve.Scalar) []byte {
	rBytes, _ := nonce.MarshalBinary()
	zBytes, _ := z.MarshalBinary()
	return append(rBytes, zBytes...)
}

func (p Polkadot) VerifySignature(signature []byte, public curve.Point, payload []byte) error {
	if len(signature) != 64 {
		return fmt.Errorf("%w: ed25519 signatures are 64 bytes, got %d", ErrMalformedSignature, len(signature))
	}
	group := curve.Edwards25519{}
	nonce := group.NewPoint()
	if err := nonce.UnmarshalBinary(signature[:32]); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	s := group.NewScalar()
	if err := s.UnmarshalBinary(signature[32:]); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	c := p.Challenge(nonce, public, payload)
	// [s]⋅G = R + [c]⋅A
	if !s.ActOnBase().Equal(nonce.Add(c.Act(public))) {
		return ErrSignatureInvalid
	}
	return nil
}

func (Polkadot) ValidatePayload(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("polkadot: empty payload")
	}
	return nil
}

func (Polkadot) MaxSigningPayloads() int {
	return 1
}

func (Polkadot) SigningPayloadForTest() []byte {
	return []byte("polkadot key verification payload")
}
