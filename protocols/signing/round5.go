package signing

import (
	"fmt"

	"github.com/fluxline/multisig/internal/frost"
	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/fxamacker/cbor/v2"
)

// round5 is the final echo round: once the shares are agreed, each one is
// checked against its sender's verification share, then the shares are
// aggregated into one signature per payload and verified under the scheme.
type round5 struct {
	*round4
	reports5 map[party.ID]map[party.ID][]byte
}

type broadcast5 struct {
	Views map[party.ID][]byte
}

// RoundNumber implements round.Content.
func (broadcast5) RoundNumber() round.Number { return 5 }

// VerifyMessage implements round.Round.
func (r *round5) VerifyMessage(msg round.Message) error {
	body, ok := msg.Content.(*broadcast5)
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
func (r *round5) StoreMessage(msg round.Message) error {
	body := msg.Content.(*broadcast5)
	r.reports5[msg.From] = body.Views
	return nil
}

// Finalize implements round.Round.
func (r *round5) Finalize(chan<- *round.Message) (round.Session, error) {
	agreed, blamed := round.AgreeBroadcast(r.views4, r.reports5, r.Threshold()+1)
	if blamed.Len() > 0 {
		return r.AbortRound(fmt.Errorf("signing: inconsistent signature share broadcast"), blamed...), nil
	}
	var culprits []party.ID
	for _, sender := range round.Changed(r.views4, agreed) {
		body := &broadcast4{}
		if err := cbor.Unmarshal(agreed[sender], body); err != nil {
			culprits = append(culprits, sender)
			continue
		}
		decoded, err := r.decodeShares(body)
		if err != nil {
			culprits = append(culprits, sender)
			continue
		}
		r.shares[sender] = decoded
		r.views4[sender] = agreed[sender]
	}
	if len(culprits) > 0 {
		return r.AbortRound(fmt.Errorf("signing: invalid signature share broadcast"), culprits...), nil
	}

	// Every share is independently checkable, so failures are precisely
	// attributable. A signer is blamed once, however many of its shares
	// are bad. Our own share is checked too: the agreed set may have
	// replaced it.
	for _, id := range r.PartyIDs() {
		for k := range r.payloads {
			if !frost.VerifyShare(r.shares[id][k], r.state.commitments[k][id], r.state.rho[k][id], r.lagrange[id], r.state.challenges[k], r.key.VerificationShares[id]) {
				culprits = append(culprits, id)
				break
			}
		}
	}
	if len(culprits) > 0 {
		return r.AbortRound(fmt.Errorf("signing: invalid signature shares"), culprits...), nil
	}

	signatures := make([][]byte, len(r.payloads))
	for k, payload := range r.payloads {
		shares := make(map[party.ID]curve.Scalar, r.N())
		for _, id := range r.PartyIDs() {
			shares[id] = r.shares[id][k]
		}
		z := frost.Aggregate(r.Group(), r.PartyIDs(), shares)
		signatures[k] = r.key.Scheme.BuildSignature(r.state.groupCommitments[k], z)
		if err := r.key.Scheme.VerifySignature(signatures[k], r.key.PublicKey, payload); err != nil {
			// Every share checked out individually, yet the aggregate
			// failed: nobody can be blamed.
			return r.AbortRound(fmt.Errorf("signing: aggregate signature rejected: %w", err), r.PartyIDs()...), nil
		}
	}
	return r.ResultRound(signatures), nil
}

// MessageContent implements round.Round.
func (round5) MessageContent() round.Content { return &broadcast5{} }

// Number implements round.Round.
func (round5) Number() round.Number { return 5 }
