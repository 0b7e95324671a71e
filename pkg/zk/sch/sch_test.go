package zksch

import (
	"crypto/rand"
	"testing"

	"github.com/cronokirby/saferith"
	"github.com/fluxline/multisig/pkg/hash"
	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/math/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchProof(t *testing.T) {
	for _, group := range []curve.Curve{curve.Secp256k1{}, curve.Edwards25519{}, curve.Ristretto255{}} {
		t.Run(group.Name(), func(t *testing.T) {
			h := hash.New(hash.BytesWithDomain{TheDomain: "Test", Bytes: []byte("session")})
			secret, public := sample.ScalarPointPair(rand.Reader, group)

			proof := NewProof(h, public, secret, rand.Reader)
			require.True(t, proof.IsValid())
			assert.True(t, proof.Verify(h, public))

			// A transcript mismatch must fail.
			otherHash := hash.New(hash.BytesWithDomain{TheDomain: "Test", Bytes: []byte("other")})
			assert.False(t, proof.Verify(otherHash, public))

			// A different public point must fail.
			_, otherPublic := sample.ScalarPointPair(rand.Reader, group)
			assert.False(t, proof.Verify(h, otherPublic))
		})
	}
}

func oneNat() *saferith.Nat { return new(saferith.Nat).SetUint64(1) }

func TestSchProofTampered(t *testing.T) {
	group := curve.Secp256k1{}
	h := hash.New()
	secret, public := sample.ScalarPointPair(rand.Reader, group)

	proof := NewProof(h, public, secret, rand.Reader)
	proof.Z = proof.Z.Add(group.NewScalar().SetNat(oneNat()))
	assert.False(t, proof.Verify(h, public))
}

func TestSchProofMarshalRoundTrip(t *testing.T) {
	group := curve.Ristretto255{}
	h := hash.New()
	secret, public := sample.ScalarPointPair(rand.Reader, group)
	proof := NewProof(h, public, secret, rand.Reader)

	cBytes, err := proof.C.MarshalBinary()
	require.NoError(t, err)
	zBytes, err := proof.Z.MarshalBinary()
	require.NoError(t, err)

	decoded := EmptyProof(group)
	require.NoError(t, decoded.C.UnmarshalBinary(cBytes))
	require.NoError(t, decoded.Z.UnmarshalBinary(zBytes))
	assert.True(t, decoded.Verify(h, public))
}
