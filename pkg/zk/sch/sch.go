// Package zksch implements Schnorr proofs of knowledge of discrete
// logarithms, compiled with the Fiat-Shamir transform over a session
// transcript.
package zksch

import (
	"io"

	"github.com/fluxline/multisig/pkg/hash"
	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/math/sample"
)

// Randomness is the prover state: a commitment nonce a, and its public
// image A = [a]⋅G.
type Randomness struct {
	a          curve.Scalar
	commitment curve.Point
}

// NewRandomness generates a fresh commitment nonce.
func NewRandomness(rand io.Reader, group curve.Curve) *Randomness {
	a := sample.Scalar(rand, group)
	return &Randomness{
		a:          a,
		commitment: a.ActOnBase(),
	}
}

func challenge(h *hash.Hash, group curve.Curve, commitment, public curve.Point) curve.Scalar {
	_ = h.WriteAny(commitment, public, group.NewBasePoint())
	return curve.FromHash(group, h.Sum())
}

// Prove creates a Proof of knowledge of secret, where public = [secret]⋅G.
// The hash h should be bound to the surrounding session transcript.
func (r *Randomness) Prove(h *hash.Hash, public curve.Point, secret curve.Scalar) *Proof {
	if public.IsIdentity() || secret.IsZero() {
		return nil
	}
	e := challenge(h.Clone(), secret.Curve(), r.commitment, public)
	// z = a + e⋅x
	z := e.Mul(secret).Add(r.a)
	return &Proof{
		C: r.commitment,
		Z: z,
	}
}

// Commitment returns the public image A of the commitment nonce.
func (r *Randomness) Commitment() curve.Point {
	return r.commitment
}

// Proof is a Schnorr proof of knowledge, (A, z) with z = a + e⋅x.
type Proof struct {
	C curve.Point
	Z curve.Scalar
}

// NewProof is a shorthand combining NewRandomness and Prove.
func NewProof(h *hash.Hash, public curve.Point, secret curve.Scalar, rand io.Reader) *Proof {
	r := NewRandomness(rand, secret.Curve())
	return r.Prove(h, public, secret)
}

// EmptyProof returns a Proof with group-bound empty fields, suitable as an
// unmarshalling target.
func EmptyProof(group curve.Curve) *Proof {
	return &Proof{
		C: group.NewPoint(),
		Z: group.NewScalar(),
	}
}

// IsValid performs some sanity checks, before the relatively expensive Verify.
func (p *Proof) IsValid() bool {
	if p == nil || p.C == nil || p.Z == nil {
		return false
	}
	return !p.C.IsIdentity() && !p.Z.IsZero()
}

// Verify checks that [z]⋅G = A + [e]⋅X.
func (p *Proof) Verify(h *hash.Hash, public curve.Point) bool {
	if !p.IsValid() || public.IsIdentity() {
		return false
	}
	group := public.Curve()
	e := challenge(h.Clone(), group, p.C, public)

	lhs := p.Z.ActOnBase()
	rhs := e.Act(public).Add(p.C)
	return lhs.Equal(rhs)
}
