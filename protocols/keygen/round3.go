package keygen

import (
	"fmt"

	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/hash"
	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/party"
	zksch "github.com/fluxline/multisig/pkg/zk/sch"
	"github.com/fxamacker/cbor/v2"
)

// round3 is the echo round over the commitments: it agrees on one
// commitment per party, blames equivocators, then distributes the private
// Shamir shares.
type round3 struct {
	*round2
	// reports maps each echoing party to the encodings it claims to have
	// received, keyed by original sender.
	reports map[party.ID]map[party.ID][]byte
}

type broadcast3 struct {
	// Views maps each original sender to the canonical encoding of the
	// round 2 content received from it.
	Views map[party.ID][]byte
}

// RoundNumber implements round.Content.
func (broadcast3) RoundNumber() round.Number { return 3 }

// VerifyMessage implements round.Round.
func (r *round3) VerifyMessage(msg round.Message) error {
	body, ok := msg.Content.(*broadcast3)
	if !ok || body == nil {
		return round.ErrInvalidContent
	}
	for _, id := range r.PartyIDs() {
		if len(body.Views[id]) == 0 {
			return fmt.Errorf("keygen: echo from %s is missing a view for %s", msg.From, id)
		}
	}
	return nil
}

// StoreMessage implements round.Round.
func (r *round3) StoreMessage(msg round.Message) error {
	body := msg.Content.(*broadcast3)
	r.reports[msg.From] = body.Views
	return nil
}

// Finalize implements round.Round.
func (r *round3) Finalize(out chan<- *round.Message) (round.Session, error) {
	agreed, blamed := round.AgreeBroadcast(r.views, r.reports, r.Threshold()+1)
	if blamed.Len() > 0 {
		return r.AbortRound(fmt.Errorf("keygen: inconsistent commitment broadcast"), blamed...), nil
	}

	// A sender may have equivocated towards us specifically: adopt the
	// agreed value, re-validating it, so all honest parties continue with
	// identical commitments.
	var culprits []party.ID
	for _, sender := range round.Changed(r.views, agreed) {
		body := &broadcast2{Proof: zksch.EmptyProof(r.Group())}
		if err := cbor.Unmarshal(agreed[sender], body); err != nil {
			culprits = append(culprits, sender)
			continue
		}
		commitment, err := r.validateCommitment(sender, body)
		if err != nil {
			culprits = append(culprits, sender)
			continue
		}
		r.commitments[sender] = commitment
		r.views[sender] = agreed[sender]
	}
	if len(culprits) > 0 {
		return r.AbortRound(fmt.Errorf("keygen: invalid commitment broadcast"), culprits...), nil
	}

	// The commitments are now agreed on: bind them into the transcript so
	// every later challenge commits to them.
	for _, id := range r.PartyIDs() {
		r.UpdateHashState(hash.BytesWithDomain{
			TheDomain: "Agreed Commitment",
			Bytes:     r.views[id],
		})
	}

	// Send every other party its private share fᵢ(x_j).
	for _, j := range r.OtherPartyIDs() {
		share := r.poly.Evaluate(j.Scalar(r.Group()))
		if err := r.SendMessage(out, &message4{Share: share}, j); err != nil {
			return r, err
		}
	}
	ownShare := r.poly.Evaluate(r.SelfID().Scalar(r.Group()))

	return &round4{
		round3: r,
		shares: map[party.ID]curve.Scalar{r.SelfID(): ownShare},
	}, nil
}

// MessageContent implements round.Round.
func (round3) MessageContent() round.Content { return &broadcast3{} }

// Number implements round.Round.
func (round3) Number() round.Number { return 3 }
