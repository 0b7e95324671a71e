package keygen

import (
	"fmt"

	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/math/polynomial"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/fluxline/multisig/pkg/scheme"
	zksch "github.com/fluxline/multisig/pkg/zk/sch"
)

// round1 samples this party's secret polynomial and broadcasts the Feldman
// commitment together with a proof of knowledge of the constant term.
type round1 struct {
	*round.Helper
	scheme    scheme.Scheme
	verifyKey bool
}

// VerifyMessage implements round.Round: the first round receives nothing.
func (r *round1) VerifyMessage(round.Message) error { return nil }

// StoreMessage implements round.Round.
func (r *round1) StoreMessage(round.Message) error { return nil }

// Finalize implements round.Round.
func (r *round1) Finalize(out chan<- *round.Message) (round.Session, error) {
	// fᵢ(X) = xᵢ + a₁⋅X + … + aₜ⋅Xᵗ; the aggregate secret will be Σᵢ fᵢ(0).
	poly := polynomial.NewPolynomial(r.Group(), r.Threshold(), nil, r.Rand())
	commitment := polynomial.NewPolynomialExponent(poly)

	secret := poly.Constant()
	defer secret.Wipe()
	proof := zksch.NewProof(r.HashForID(r.SelfID()), commitment.Constant(), secret, r.Rand())
	if proof == nil {
		return r, fmt.Errorf("keygen: failed to prove knowledge of the secret coefficient")
	}

	commitmentBytes, err := commitment.MarshalBinary()
	if err != nil {
		return r, fmt.Errorf("keygen: %w", err)
	}
	ownContent := &broadcast2{
		Commitment: commitmentBytes,
		Proof:      proof,
	}
	if err := r.BroadcastMessage(out, ownContent); err != nil {
		return r, err
	}

	ownView, err := round.CanonicalEncode(ownContent)
	if err != nil {
		return r, err
	}
	return &round2{
		round1:      r,
		poly:        poly,
		commitments: map[party.ID]*polynomial.Exponent{r.SelfID(): commitment},
		views:       map[party.ID][]byte{r.SelfID(): ownView},
	}, nil
}

// MessageContent implements round.Round.
func (round1) MessageContent() round.Content { return nil }

// Number implements round.Round.
func (round1) Number() round.Number { return 1 }
