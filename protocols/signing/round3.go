package signing

import (
	"fmt"

	"github.com/fluxline/multisig/internal/frost"
	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/hash"
	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/math/polynomial"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/fxamacker/cbor/v2"
)

// round3 is the echo round over the nonce commitments. Once they are
// agreed, every signer derives the binding factors and group commitment per
// payload and broadcasts its signature shares.
type round3 struct {
	*round2
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
			return fmt.Errorf("signing: echo from %s is missing a view for %s", msg.From, id)
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
		return r.AbortRound(fmt.Errorf("signing: inconsistent nonce commitment broadcast"), blamed...), nil
	}
	var culprits []party.ID
	for _, sender := range round.Changed(r.views, agreed) {
		body := &broadcast2{}
		if err := cbor.Unmarshal(agreed[sender], body); err != nil {
			culprits = append(culprits, sender)
			continue
		}
		decoded, err := r.decodeCommitments(body)
		if err != nil {
			culprits = append(culprits, sender)
			continue
		}
		r.commitments[sender] = decoded
		r.views[sender] = agreed[sender]
	}
	if len(culprits) > 0 {
		return r.AbortRound(fmt.Errorf("signing: invalid nonce commitment broadcast"), culprits...), nil
	}

	// Commit the agreed nonce commitments so the binding factors cover them.
	for _, id := range r.PartyIDs() {
		r.UpdateHashState(hash.BytesWithDomain{
			TheDomain: "Agreed Nonce Commitment",
			Bytes:     r.views[id],
		})
	}

	lagrange, err := polynomial.Lagrange(r.Group(), r.PartyIDs())
	if err != nil {
		return r, err
	}

	numPayloads := len(r.payloads)
	state := &perPayloadState{
		commitments:      make([]map[party.ID]frost.NonceCommitment, numPayloads),
		rho:              make([]map[party.ID]curve.Scalar, numPayloads),
		groupCommitments: make([]curve.Point, numPayloads),
		challenges:       make([]curve.Scalar, numPayloads),
	}
	ownShares := make([]curve.Scalar, numPayloads)
	shareBytes := make([][]byte, numPayloads)
	transcript := r.Hash()
	for k, payload := range r.payloads {
		commitments := make(map[party.ID]frost.NonceCommitment, r.N())
		for _, id := range r.PartyIDs() {
			commitments[id] = r.commitments[id][k]
		}
		rho, err := frost.BindingFactors(transcript, r.Group(), r.PartyIDs(), commitments, payload)
		if err != nil {
			return r, err
		}
		groupCommitment := frost.GroupCommitment(r.Group(), r.PartyIDs(), commitments, rho)

		// Schemes transmitting x-only nonces need R with even y: every
		// signer negates the whole nonce layer the same way.
		if r.key.Scheme.NonceNeedsNegation(groupCommitment) {
			r.nonces[k].D.Negate()
			r.nonces[k].E.Negate()
			for id, commitment := range commitments {
				commitments[id] = frost.NonceCommitment{
					D: commitment.D.Negate(),
					E: commitment.E.Negate(),
				}
			}
			groupCommitment = groupCommitment.Negate()
		}

		challenge := r.key.Scheme.Challenge(groupCommitment, r.key.PublicKey, payload)
		ownShares[k] = frost.SignatureShare(r.nonces[k], rho[r.SelfID()], lagrange[r.SelfID()], r.key.PrivateShare, challenge)
		r.nonces[k].Wipe()
		if shareBytes[k], err = ownShares[k].MarshalBinary(); err != nil {
			return r, fmt.Errorf("signing: %w", err)
		}

		state.commitments[k] = commitments
		state.rho[k] = rho
		state.groupCommitments[k] = groupCommitment
		state.challenges[k] = challenge
	}

	ownContent := &broadcast4{Shares: shareBytes}
	if err := r.BroadcastMessage(out, ownContent); err != nil {
		return r, err
	}
	ownView, err := round.CanonicalEncode(ownContent)
	if err != nil {
		return r, err
	}
	return &round4{
		round3:   r,
		state:    state,
		lagrange: lagrange,
		shares:   map[party.ID][]curve.Scalar{r.SelfID(): ownShares},
		views4:   map[party.ID][]byte{r.SelfID(): ownView},
	}, nil
}

// MessageContent implements round.Round.
func (round3) MessageContent() round.Content { return &broadcast3{} }

// Number implements round.Round.
func (round3) Number() round.Number { return 3 }
