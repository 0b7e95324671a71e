package scheme

import (
	"crypto/rand"
	"testing"

	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/math/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateCompatibleKey samples key pairs until the scheme accepts one.
func generateCompatibleKey(t *testing.T, s Scheme) (curve.Scalar, curve.Point) {
	t.Helper()
	group := s.Curve()
	for i := 0; i < 64; i++ {
		secret, public := sample.ScalarPointPair(rand.Reader, group)
		if s.KeyNeedsNegation(public) {
			secret.Negate()
			public = secret.ActOnBase()
		}
		if s.IsKeyCompatible(public) {
			return secret, public
		}
	}
	t.Fatal("failed to sample a compatible key")
	return nil, nil
}

// signSingleParty produces a signature with a single unshared key, which
// must verify under the same equation the threshold protocol uses.
func signSingleParty(s Scheme, secret curve.Scalar, public curve.Point, payload []byte) []byte {
	group := s.Curve()
	k, nonce := sample.ScalarPointPair(rand.Reader, group)
	if s.NonceNeedsNegation(nonce) {
		k.Negate()
		nonce = k.ActOnBase()
	}
	c := s.Challenge(nonce, public, payload)
	// z = k + c⋅x
	z := group.NewScalar().Set(c).Mul(secret).Add(k)
	return s.BuildSignature(nonce, z)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	for _, s := range All() {
		t.Run(s.Name(), func(t *testing.T) {
			secret, public := generateCompatibleKey(t, s)
			payload := s.SigningPayloadForTest()
			require.NoError(t, s.ValidatePayload(payload))

			signature := signSingleParty(s, secret, public, payload)
			assert.NoError(t, s.VerifySignature(signature, public, payload))
		})
	}
}

func TestVerifyRejectsWrongPayload(t *testing.T) {
	for _, s := range All() {
		t.Run(s.Name(), func(t *testing.T) {
			secret, public := generateCompatibleKey(t, s)
			payload := s.SigningPayloadForTest()
			signature := signSingleParty(s, secret, public, payload)

			otherPayload := append([]byte{}, payload...)
			otherPayload[0] ^= 1
			err := s.VerifySignature(signature, public, otherPayload)
			assert.ErrorIs(t, err, ErrSignatureInvalid)
		})
	}
}

func TestVerifyRejectsTruncatedSignature(t *testing.T) {
	for _, s := range All() {
		t.Run(s.Name(), func(t *testing.T) {
			secret, public := generateCompatibleKey(t, s)
			payload := s.SigningPayloadForTest()
			signature := signSingleParty(s, secret, public, payload)

			err := s.VerifySignature(signature[:len(signature)-1], public, payload)
			assert.ErrorIs(t, err, ErrMalformedSignature)
		})
	}
}

func TestByName(t *testing.T) {
	for _, s := range All() {
		found, err := ByName(s.Name())
		require.NoError(t, err)
		assert.Equal(t, s.Name(), found.Name())
	}
	_, err := ByName("unknown")
	assert.Error(t, err)
}

func TestPubKeyBytesStable(t *testing.T) {
	for _, s := range All() {
		t.Run(s.Name(), func(t *testing.T) {
			_, public := generateCompatibleKey(t, s)
			first := s.PubKeyBytes(public)
			second := s.PubKeyBytes(public)
			assert.Equal(t, first, second)
			assert.NotEmpty(t, first)
		})
	}
}
