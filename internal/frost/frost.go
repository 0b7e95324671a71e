// Package frost implements the algebra shared by the signing rounds:
// binding factors, group commitments, per-share verification and share
// aggregation, following the FROST construction.
package frost

import (
	"fmt"

	"github.com/fluxline/multisig/pkg/hash"
	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/party"
)

// Nonce is one party's secret nonce pair for a single payload.
type Nonce struct {
	D curve.Scalar
	E curve.Scalar
}

// Wipe clears both nonce scalars.
func (n *Nonce) Wipe() {
	if n.D != nil {
		n.D.Wipe()
	}
	if n.E != nil {
		n.E.Wipe()
	}
}

// NonceCommitment is the public image (D, E) of a Nonce.
type NonceCommitment struct {
	D curve.Point
	E curve.Point
}

// BindingFactors computes the per-party binding factors ρ_l for one
// payload:
//
//	ρ_l = H(transcript, payload, {(j, D_j, E_j)}, l)
//
// Binding every commitment into each factor prevents a Wagner-style attack
// combining signature shares across concurrent ceremonies.
func BindingFactors(transcript *hash.Hash, group curve.Curve, signers party.IDSlice, commitments map[party.ID]NonceCommitment, payload []byte) (map[party.ID]curve.Scalar, error) {
	common := transcript.Clone()
	if err := common.WriteAny(hash.BytesWithDomain{TheDomain: "Signing Payload", Bytes: payload}); err != nil {
		return nil, fmt.Errorf("frost: binding factors: %w", err)
	}
	for _, l := range signers {
		commitment, ok := commitments[l]
		if !ok {
			return nil, fmt.Errorf("frost: binding factors: missing commitment from %s", l)
		}
		if err := common.WriteAny(l, commitment.D, commitment.E); err != nil {
			return nil, fmt.Errorf("frost: binding factors: %w", err)
		}
	}

	rho := make(map[party.ID]curve.Scalar, signers.Len())
	for _, l := range signers {
		perParty := common.Clone()
		_ = perParty.WriteAny(hash.BytesWithDomain{TheDomain: "Binding Factor Party", Bytes: []byte(l)})
		rho[l] = curve.FromHash(group, perParty.Sum())
	}
	return rho, nil
}

// NonceShare returns party l's contribution R_l = D_l + [ρ_l]⋅E_l to the
// group commitment.
func NonceShare(commitment NonceCommitment, rho curve.Scalar) curve.Point {
	return commitment.D.Add(rho.Act(commitment.E))
}

// GroupCommitment aggregates all parties' nonce shares into the signature
// nonce R = Σ_l (D_l + [ρ_l]⋅E_l).
func GroupCommitment(group curve.Curve, signers party.IDSlice, commitments map[party.ID]NonceCommitment, rho map[party.ID]curve.Scalar) curve.Point {
	r := group.NewPoint()
	for _, l := range signers {
		r = r.Add(NonceShare(commitments[l], rho[l]))
	}
	return r
}

// SignatureShare computes this party's share of the signature over one
// payload:
//
//	z_i = d_i + ρ_i⋅e_i + λ_i⋅x_i⋅c
//
// The nonce is wiped by the caller once all shares are produced.
func SignatureShare(nonce Nonce, rho, lagrange, secretShare, challenge curve.Scalar) curve.Scalar {
	group := challenge.Curve()
	z := group.NewScalar().Set(rho).Mul(nonce.E).Add(nonce.D)
	return z.Add(group.NewScalar().Set(lagrange).Mul(secretShare).Mul(challenge))
}

// VerifyShare checks one party's signature share against public values:
//
//	[z_l]⋅G = D_l + [ρ_l]⋅E_l + [c⋅λ_l]⋅Y_l
//
// where Y_l is the party's public verification share. A failure precisely
// identifies l as faulty.
func VerifyShare(share curve.Scalar, commitment NonceCommitment, rho, lagrange, challenge curve.Scalar, verificationShare curve.Point) bool {
	group := challenge.Curve()
	expected := NonceShare(commitment, rho)
	expected = expected.Add(group.NewScalar().Set(challenge).Mul(lagrange).Act(verificationShare))
	return share.ActOnBase().Equal(expected)
}

// Aggregate sums all signature shares into the final signature scalar.
func Aggregate(group curve.Curve, signers party.IDSlice, shares map[party.ID]curve.Scalar) curve.Scalar {
	z := group.NewScalar()
	for _, l := range signers {
		z.Add(shares[l])
	}
	return z
}
