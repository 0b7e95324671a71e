package scheme

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/fluxline/multisig/pkg/math/curve"
	"golang.org/x/crypto/sha3"
)

// Ethereum implements the Schnorr variant verified by the EVM KeyManager
// contract. The contract verifies signatures through the ecrecover
// precompile, so the wire format carries the nonce point as an Ethereum
// address rather than a full point.
type Ethereum struct{}

// secp256k1HalfOrder is ⌊n/2⌋. The KeyManager contract requires aggregate
// key x coordinates below this bound so its internal ecrecover inputs stay
// canonical.
var secp256k1HalfOrder = mustHex("7FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF5D576E7357A4501DDFE92F46681B20A0")

func mustHex(s string) []byte {
	out, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return out
}

func (Ethereum) Name() string {
	return "ethereum"
}

func (Ethereum) Curve() curve.Curve {
	return curve.Secp256k1{}
}

// PubKeyBytes returns the 33 byte compressed encoding.
func (Ethereum) PubKeyBytes(public curve.Point) []byte {
	out, _ := public.MarshalBinary()
	return out
}

// KeyNeedsNegation is always false: negation cannot change the x
// coordinate the KeyManager contract constrains.
func (Ethereum) KeyNeedsNegation(curve.Point) bool {
	return false
}

func (Ethereum) IsKeyCompatible(public curve.Point) bool {
	p := public.(*curve.Secp256k1Point)
	if p.IsIdentity() {
		return false
	}
	return bytes.Compare(p.XBytes(), secp256k1HalfOrder) < 0
}

func (Ethereum) NonceNeedsNegation(curve.Point) bool {
	return false
}

func keccak256(datas ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, data := range datas {
		h.Write(data)
	}
	return h.Sum(nil)
}

// pointAddress returns the Ethereum address of a curve point.
func pointAddress(p curve.Point) []byte {
	uncompressed := p.(*curve.Secp256k1Point).UncompressedBytes()
	return keccak256(uncompressed)[12:]
}

func parityByte(p curve.Point) byte {
	if p.(*curve.Secp256k1Point).HasEvenY() {
		return 0
	}
	return 1
}

func (e Ethereum) challengeWithAddress(public curve.Point, payload, nonceAddress []byte) curve.Scalar {
	key := public.(*curve.Secp256k1Point)
	digest := keccak256(
		key.XBytes(),
		[]byte{parityByte(public)},
		payload,
		nonceAddress,
	)
	return curve.FromHash(e.Curve(), digest)
}

func (e Ethereum) Challenge(nonce curve.Point, public curve.Point, payload []byte) curve.Scalar {
	return e.challengeWithAddress(public, payload, pointAddress(nonce))
}

// BuildSignature returns s ‖ address(R): 32 + 20 bytes.
func (Ethereum) BuildSignature(nonce curve.Point, z curve.Scalar) []byte {
	zBytes, _ := z.MarshalBinary()
	return append(zBytes, pointAddress(nonce)...)
}

func (e Ethereum) VerifySignature(signature []byte, public curve.Point, payload []byte) error {
	if len(signature) != 52 {
		return fmt.Errorf("%w: ethereum signatures are 52 bytes, got %d", ErrMalformedSignature, len(signature))
	}
	sBytes, nonceAddress := signature[:32], signature[32:]

	s := e.Curve().NewScalar()
	if err := s.UnmarshalBinary(sBytes); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	c := e.challengeWithAddress(public, payload, nonceAddress)
	// R = [s]⋅G - [c]⋅Y; the signature checks out if R hashes back to the
	// claimed nonce address.
	reconstructed := s.ActOnBase().Sub(c.Act(public))
	if reconstructed.IsIdentity() || !bytes.Equal(pointAddress(reconstructed), nonceAddress) {
		return ErrSignatureInvalid
	}
	return nil
}

func (Ethereum) ValidatePayload(payload []byte) error {
	if len(payload) != 32 {
		return fmt.Errorf("ethereum: payload must be a 32 byte message hash, got %d bytes", len(payload))
	}
	return nil
}

func (Ethereum) MaxSigningPayloads() int {
	return 1
}

func (Ethereum) SigningPayloadForTest() []byte {
	return keccak256([]byte("ethereum key verification payload"))
}
