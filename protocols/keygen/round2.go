package keygen

import (
	"fmt"

	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/math/polynomial"
	"github.com/fluxline/multisig/pkg/party"
	zksch "github.com/fluxline/multisig/pkg/zk/sch"
)

// round2 collects every party's commitment and proof of knowledge.
type round2 struct {
	*round1
	poly *polynomial.Polynomial
	// commitments are the verified Feldman commitments Φⱼ, including our own.
	commitments map[party.ID]*polynomial.Exponent
	// views record the canonical encoding of what we received from each
	// sender, for the echo round.
	views map[party.ID][]byte
}

type broadcast2 struct {
	// Commitment is the marshalled Feldman commitment Φⱼ.
	Commitment []byte
	// Proof is a Schnorr proof of knowledge of Φⱼ's constant term.
	Proof *zksch.Proof
}

// RoundNumber implements round.Content.
func (broadcast2) RoundNumber() round.Number { return 2 }

// validateCommitment checks a round 2 content from a given sender, and
// returns the decoded commitment. It is used both on first receipt and
// when adopting an echo-agreed value.
func (r *round2) validateCommitment(from party.ID, body *broadcast2) (*polynomial.Exponent, error) {
	if len(body.Commitment) == 0 || body.Proof == nil {
		return nil, round.ErrNilFields
	}
	commitment := polynomial.EmptyExponent(r.Group())
	if err := commitment.UnmarshalBinary(body.Commitment); err != nil {
		return nil, fmt.Errorf("keygen: commitment from %s: %w", from, err)
	}
	if commitment.Degree() != r.Threshold() {
		return nil, fmt.Errorf("keygen: commitment from %s has degree %d, expected %d", from, commitment.Degree(), r.Threshold())
	}
	if !body.Proof.Verify(r.HashForID(from), commitment.Constant()) {
		return nil, fmt.Errorf("keygen: invalid proof of knowledge from %s", from)
	}
	return commitment, nil
}

// VerifyMessage implements round.Round.
func (r *round2) VerifyMessage(msg round.Message) error {
	body, ok := msg.Content.(*broadcast2)
	if !ok || body == nil {
		return round.ErrInvalidContent
	}
	_, err := r.validateCommitment(msg.From, body)
	return err
}

// StoreMessage implements round.Round.
func (r *round2) StoreMessage(msg round.Message) error {
	body := msg.Content.(*broadcast2)
	commitment := polynomial.EmptyExponent(r.Group())
	if err := commitment.UnmarshalBinary(body.Commitment); err != nil {
		return err
	}
	view, err := round.CanonicalEncode(body)
	if err != nil {
		return err
	}
	r.commitments[msg.From] = commitment
	r.views[msg.From] = view
	return nil
}

// Finalize implements round.Round: every party echoes what it received so
// the next round can agree on one commitment per party.
func (r *round2) Finalize(out chan<- *round.Message) (round.Session, error) {
	if err := r.BroadcastMessage(out, &broadcast3{Views: r.views}); err != nil {
		return r, err
	}
	return &round3{
		round2:  r,
		reports: map[party.ID]map[party.ID][]byte{r.SelfID(): r.views},
	}, nil
}

// MessageContent implements round.Round.
func (r *round2) MessageContent() round.Content {
	return &broadcast2{Proof: zksch.EmptyProof(r.Group())}
}

// Number implements round.Round.
func (round2) Number() round.Number { return 2 }
