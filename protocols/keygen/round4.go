package keygen

import (
	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/party"
)

// round4 collects the private Shamir shares. A share failing the check
// against its sender's commitment becomes a complaint rather than an
// abort: the complaint round decides blame consistently on all nodes.
type round4 struct {
	*round3
	// shares holds the verified shares fⱼ(xᵢ), including our own.
	shares map[party.ID]curve.Scalar
	// accused lists the senders whose share failed verification.
	accused []party.ID
}

type message4 struct {
	// Share is fⱼ(xᵢ), evaluated at the recipient's scalar.
	Share curve.Scalar
}

// RoundNumber implements round.Content.
func (message4) RoundNumber() round.Number { return 4 }

// VerifyMessage implements round.Round.
func (r *round4) VerifyMessage(msg round.Message) error {
	body, ok := msg.Content.(*message4)
	if !ok || body == nil {
		return round.ErrInvalidContent
	}
	if body.Share == nil {
		return round.ErrNilFields
	}
	return nil
}

// StoreMessage implements round.Round.
func (r *round4) StoreMessage(msg round.Message) error {
	body := msg.Content.(*message4)
	// [fⱼ(xᵢ)]⋅G = Φⱼ(xᵢ)
	expected := r.commitments[msg.From].Evaluate(r.SelfID().Scalar(r.Group()))
	if !body.Share.ActOnBase().Equal(expected) {
		r.accused = append(r.accused, msg.From)
		return nil
	}
	r.shares[msg.From] = body.Share
	return nil
}

// Finalize implements round.Round: complaints, empty or not, are broadcast
// by everyone so the next echo round can agree on them.
func (r *round4) Finalize(out chan<- *round.Message) (round.Session, error) {
	ownContent := &broadcast5{Accused: party.NewIDSlice(r.accused)}
	if err := r.BroadcastMessage(out, ownContent); err != nil {
		return r, err
	}
	ownView, err := round.CanonicalEncode(ownContent)
	if err != nil {
		return r, err
	}
	return &round5{
		round4:     r,
		complaints: map[party.ID]party.IDSlice{r.SelfID(): ownContent.Accused},
		views5:     map[party.ID][]byte{r.SelfID(): ownView},
	}, nil
}

// MessageContent implements round.Round.
func (r *round4) MessageContent() round.Content {
	return &message4{Share: r.Group().NewScalar()}
}

// Number implements round.Round.
func (round4) Number() round.Number { return 4 }
