package frost

import (
	"crypto/rand"
	"testing"

	"github.com/fluxline/multisig/pkg/hash"
	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/math/polynomial"
	"github.com/fluxline/multisig/pkg/math/sample"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dealShares produces a trusted-dealer sharing to exercise the signing
// algebra without running a keygen ceremony.
func dealShares(group curve.Curve, signers party.IDSlice, threshold int) (secret curve.Scalar, shares map[party.ID]curve.Scalar, verificationShares map[party.ID]curve.Point) {
	poly := polynomial.NewPolynomial(group, threshold, nil, rand.Reader)
	exponent := polynomial.NewPolynomialExponent(poly)

	secret = poly.Constant()
	shares = make(map[party.ID]curve.Scalar, signers.Len())
	verificationShares = make(map[party.ID]curve.Point, signers.Len())
	for _, id := range signers {
		x := id.Scalar(group)
		shares[id] = poly.Evaluate(x)
		verificationShares[id] = exponent.Evaluate(x)
	}
	return secret, shares, verificationShares
}

func TestSigningAlgebra(t *testing.T) {
	for _, group := range []curve.Curve{curve.Secp256k1{}, curve.Edwards25519{}, curve.Ristretto255{}} {
		t.Run(group.Name(), func(t *testing.T) {
			signers := party.NewIDSlice([]party.ID{"a", "b", "c"})
			threshold := 1
			secret, shares, verificationShares := dealShares(group, signers, threshold)
			publicKey := secret.ActOnBase()

			nonces := make(map[party.ID]Nonce, signers.Len())
			commitments := make(map[party.ID]NonceCommitment, signers.Len())
			for _, id := range signers {
				d := sample.Scalar(rand.Reader, group)
				e := sample.Scalar(rand.Reader, group)
				nonces[id] = Nonce{D: d, E: e}
				commitments[id] = NonceCommitment{D: d.ActOnBase(), E: e.ActOnBase()}
			}

			transcript := hash.New()
			payload := []byte("payload")
			rho, err := BindingFactors(transcript, group, signers, commitments, payload)
			require.NoError(t, err)

			groupCommitment := GroupCommitment(group, signers, commitments, rho)
			challenge := sample.Scalar(rand.Reader, group)
			lagrange, err := polynomial.Lagrange(group, signers)
			require.NoError(t, err)

			shareValues := make(map[party.ID]curve.Scalar, signers.Len())
			for _, id := range signers {
				shareValues[id] = SignatureShare(nonces[id], rho[id], lagrange[id], shares[id], challenge)
				assert.True(t, VerifyShare(shareValues[id], commitments[id], rho[id], lagrange[id], challenge, verificationShares[id]))
			}

			// [z]⋅G = R + [c]⋅Y
			z := Aggregate(group, signers, shareValues)
			expected := groupCommitment.Add(group.NewScalar().Set(challenge).Act(publicKey))
			assert.True(t, z.ActOnBase().Equal(expected))
		})
	}
}

func TestVerifyShareRejectsTampered(t *testing.T) {
	group := curve.Secp256k1{}
	signers := party.NewIDSlice([]party.ID{"a", "b"})
	_, shares, verificationShares := dealShares(group, signers, 1)

	d := sample.Scalar(rand.Reader, group)
	e := sample.Scalar(rand.Reader, group)
	nonce := Nonce{D: d, E: e}
	commitment := NonceCommitment{D: d.ActOnBase(), E: e.ActOnBase()}

	rho := sample.Scalar(rand.Reader, group)
	challenge := sample.Scalar(rand.Reader, group)
	lagrange, err := polynomial.Lagrange(group, signers)
	require.NoError(t, err)

	share := SignatureShare(nonce, rho, lagrange["a"], shares["a"], challenge)
	require.True(t, VerifyShare(share, commitment, rho, lagrange["a"], challenge, verificationShares["a"]))

	tampered := group.NewScalar().Set(share).Add(sample.Scalar(rand.Reader, group))
	assert.False(t, VerifyShare(tampered, commitment, rho, lagrange["a"], challenge, verificationShares["a"]))
}

func TestBindingFactorsDependOnEveryCommitment(t *testing.T) {
	group := curve.Ristretto255{}
	signers := party.NewIDSlice([]party.ID{"a", "b"})
	commitments := make(map[party.ID]NonceCommitment, signers.Len())
	for _, id := range signers {
		commitments[id] = NonceCommitment{
			D: sample.Scalar(rand.Reader, group).ActOnBase(),
			E: sample.Scalar(rand.Reader, group).ActOnBase(),
		}
	}

	first, err := BindingFactors(hash.New(), group, signers, commitments, []byte("payload"))
	require.NoError(t, err)

	commitments["b"] = NonceCommitment{
		D: sample.Scalar(rand.Reader, group).ActOnBase(),
		E: commitments["b"].E,
	}
	second, err := BindingFactors(hash.New(), group, signers, commitments, []byte("payload"))
	require.NoError(t, err)

	assert.False(t, first["a"].Equal(second["a"]))
	assert.False(t, first["b"].Equal(second["b"]))
}
