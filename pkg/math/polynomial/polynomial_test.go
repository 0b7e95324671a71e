package polynomial

import (
	"crypto/rand"
	"testing"

	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/math/sample"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateAgainstExponent(t *testing.T) {
	group := curve.Secp256k1{}
	secret := sample.Scalar(rand.Reader, group)
	poly := NewPolynomial(group, 3, secret, rand.Reader)
	exponent := NewPolynomialExponent(poly)

	require.True(t, secret.ActOnBase().Equal(exponent.Constant()))

	for i := 0; i < 8; i++ {
		x := sample.Scalar(rand.Reader, group)
		share := poly.Evaluate(x)
		assert.True(t, share.ActOnBase().Equal(exponent.Evaluate(x)))
	}
}

func TestEvaluateAtZeroPanics(t *testing.T) {
	group := curve.Edwards25519{}
	poly := NewPolynomial(group, 2, nil, rand.Reader)
	assert.Panics(t, func() { poly.Evaluate(group.NewScalar()) })
}

func TestExponentMarshalRoundTrip(t *testing.T) {
	for _, group := range []curve.Curve{curve.Secp256k1{}, curve.Edwards25519{}, curve.Ristretto255{}} {
		t.Run(group.Name(), func(t *testing.T) {
			poly := NewPolynomial(group, 4, nil, rand.Reader)
			exponent := NewPolynomialExponent(poly)
			data, err := exponent.MarshalBinary()
			require.NoError(t, err)

			decoded := EmptyExponent(group)
			require.NoError(t, decoded.UnmarshalBinary(data))
			assert.True(t, exponent.Equal(decoded))
		})
	}
}

func TestExponentSum(t *testing.T) {
	group := curve.Ristretto255{}
	polyA := NewPolynomial(group, 2, nil, rand.Reader)
	polyB := NewPolynomial(group, 2, nil, rand.Reader)
	summed, err := Sum([]*Exponent{NewPolynomialExponent(polyA), NewPolynomialExponent(polyB)})
	require.NoError(t, err)

	x := sample.Scalar(rand.Reader, group)
	expected := polyA.Evaluate(x).Add(polyB.Evaluate(x))
	assert.True(t, expected.ActOnBase().Equal(summed.Evaluate(x)))
}

func TestLagrangeInterpolation(t *testing.T) {
	group := curve.Secp256k1{}
	partyIDs := party.NewIDSlice([]party.ID{"alice", "bob", "carol", "dave"})

	secret := sample.Scalar(rand.Reader, group)
	poly := NewPolynomial(group, partyIDs.Len()-1, secret, rand.Reader)

	coefficients, err := Lagrange(group, partyIDs)
	require.NoError(t, err)

	reconstructed := group.NewScalar()
	for _, id := range partyIDs {
		share := poly.Evaluate(id.Scalar(group))
		reconstructed.Add(share.Mul(coefficients[id]))
	}
	assert.True(t, reconstructed.Equal(secret))
}
