package scheme

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/fluxline/multisig/pkg/math/curve"
)

// MaxBitcoinSigningPayloads is the number of transaction input hashes one
// Bitcoin signing ceremony may carry. Sweeping many UTXOs requires one
// signature per input, so ceremonies batch inputs to amortize the
// interactive rounds.
const MaxBitcoinSigningPayloads = 20000

// Bitcoin implements BIP-340 Schnorr signatures over secp256k1, as verified
// by taproot script spends.
type Bitcoin struct{}

func (Bitcoin) Name() string {
	return "bitcoin"
}

func (Bitcoin) Curve() curve.Curve {
	return curve.Secp256k1{}
}

// PubKeyBytes returns the 32 byte x-only key encoding of BIP-340.
func (Bitcoin) PubKeyBytes(public curve.Point) []byte {
	return public.(*curve.Secp256k1Point).XBytes()
}

// KeyNeedsNegation requires an even y coordinate, so that the x-only key
// encoding refers to the key the shares reconstruct.
func (Bitcoin) KeyNeedsNegation(public curve.Point) bool {
	return !public.(*curve.Secp256k1Point).HasEvenY()
}

func (Bitcoin) IsKeyCompatible(public curve.Point) bool {
	return !public.IsIdentity()
}

func (Bitcoin) NonceNeedsNegation(nonce curve.Point) bool {
	return !nonce.(*curve.Secp256k1Point).HasEvenY()
}

// taggedHash implements the hash construction of BIP-340.
func taggedHash(tag string, datas ...[]byte) []byte {
	tagSum := sha256.Sum256([]byte(tag))
	h := sha256.New()
	h.Write(tagSum[:])
	h.Write(tagSum[:])
	for _, data := range datas {
		h.Write(data)
	}
	return h.Sum(nil)
}

func (b Bitcoin) Challenge(nonce curve.Point, public curve.Point, payload []byte) curve.Scalar {
	digest := taggedHash("BIP0340/challenge",
		nonce.(*curve.Secp256k1Point).XBytes(),
		b.PubKeyBytes(public),
		payload,
	)
	return curve.FromHash(b.Curve(), digest)
}

// BuildSignature returns the 64 byte taproot signature R.x ‖ s.
func (Bitcoin) BuildSignature(nonce curve.Point, z curve.Scalar) []byte {
	out := make([]byte, 0, 64)
	out = append(out, nonce.(*curve.Secp256k1Point).XBytes()...)
	zBytes, _ := z.MarshalBinary()
	return append(out, zBytes...)
}

func (b Bitcoin) VerifySignature(signature []byte, public curve.Point, payload []byte) error {
	if len(signature) != 64 {
		return fmt.Errorf("%w: bitcoin signatures are 64 bytes, got %d", ErrMalformedSignature, len(signature))
	}
	rBytes, sBytes := signature[:32], signature[32:]

	s := b.Curve().NewScalar()
	if err := s.UnmarshalBinary(sBytes); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	// Verification uses the even-y representatives of both the key and the
	// nonce, per BIP-340.
	liftedKey, err := curve.LiftX(b.PubKeyBytes(public))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	nonce, err := curve.LiftX(rBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	e := b.Challenge(nonce, public, payload)
	// R = [s]⋅G - [e]⋅P
	reconstructed := s.ActOnBase().Sub(e.Act(liftedKey)).(*curve.Secp256k1Point)
	if reconstructed.IsIdentity() || !reconstructed.HasEvenY() || !bytes.Equal(reconstructed.XBytes(), rBytes) {
		return ErrSignatureInvalid
	}
	return nil
}

func (Bitcoin) ValidatePayload(payload []byte) error {
	if len(payload) != 32 {
		return fmt.Errorf("bitcoin: payload must be a 32 byte sighash, got %d bytes", len(payload))
	}
	return nil
}

func (Bitcoin) MaxSigningPayloads() int {
	return MaxBitcoinSigningPayloads
}

func (Bitcoin) SigningPayloadForTest() []byte {
	return bytes.Repeat([]byte{0xcf}, 32)
}
