package scheme

import (
	"fmt"

	"github.com/fluxline/multisig/pkg/hash"
	"github.com/fluxline/multisig/pkg/math/curve"
)

// Ristretto implements Schnorr signatures over ristretto255, used for keys
// internal to the network rather than any external chain.
type Ristretto struct{}

func (Ristretto) Name() string {
	return "ristretto"
}

func (Ristretto) Curve() curve.Curve {
	return curve.Ristretto255{}
}

func (Ristretto) PubKeyBytes(public curve.Point) []byte {
	out, _ := public.MarshalBinary()
	return out
}

func (Ristretto) KeyNeedsNegation(curve.Point) bool {
	return false
}

func (Ristretto) IsKeyCompatible(public curve.Point) bool {
	return !public.IsIdentity()
}

func (Ristretto) NonceNeedsNegation(curve.Point) bool {
	return false
}

func (r Ristretto) Challenge(nonce curve.Point, public curve.Point, payload []byte) curve.Scalar {
	h := hash.New(hash.BytesWithDomain{TheDomain: "Ristretto Schnorr Challenge", Bytes: nil})
	_ = h.WriteAny(nonce, public, payload)
	return curve.Ristretto255{}.FromUniformBytes(h.Sum())
}

// BuildSignature returns the 64 byte signature R ‖ s.
func (Ristretto) BuildSignature(nonce curve.Point, z curve.Scalar) []byte {
	rBytes, _ := nonce.MarshalBinary()
	zBytes, _ := z.MarshalBinary()
	return append(rBytes, zBytes...)
}

func (r Ristretto) VerifySignature(signature []byte, public curve.Point, payload []byte) error {
	if len(signature) != 64 {
		return fmt.Errorf("%w: ristretto signatures are 64 bytes, got %d", ErrMalformedSignature, len(signature))
	}
	group := curve.Ristretto255{}
	nonce := group.NewPoint()
	if err := nonce.UnmarshalBinary(signature[:32]); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	s := group.NewScalar()
	if err := s.UnmarshalBinary(signature[32:]); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	c := r.Challenge(nonce, public, payload)
	if !s.ActOnBase().Equal(nonce.Add(c.Act(public))) {
		return ErrSignatureInvalid
	}
	return nil
}

func (Ristretto) ValidatePayload(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("ristretto: empty payload")
	}
	return nil
}

func (Ristretto) MaxSigningPayloads() int {
	return 1
}

func (Ristretto) SigningPayloadForTest() []byte {
	return []byte("ristretto key verification payload")
}
