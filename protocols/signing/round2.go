package signing

import (
	"fmt"

	"github.com/fluxline/multisig/internal/frost"
	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/party"
)

// round2 collects every signer's nonce commitments, one pair per payload.
type round2 struct {
	*round1
	// nonces are this party's secret nonce pairs, in payload order.
	nonces []frost.Nonce
	// commitments maps each signer to its decoded commitments, in payload
	// order.
	commitments map[party.ID][]frost.NonceCommitment
	// views record the canonical encoding of what we received from each
	// sender, for the echo round.
	views map[party.ID][]byte
}

// nonceCommitmentWire carries one commitment pair (D, E) in point encoding.
// Points travel as bytes here because the pair count varies per ceremony.
type nonceCommitmentWire struct {
	D []byte
	E []byte
}

type broadcast2 struct {
	// Commitments holds one pair per payload, in payload order.
	Commitments []nonceCommitmentWire
}

// RoundNumber implements round.Content.
func (broadcast2) RoundNumber() round.Number { return 2 }

// decodeCommitments validates a round 2 content and decodes the commitment
// pairs. It is used on first receipt and when adopting an echo-agreed value.
func (r *round1) decodeCommitments(body *broadcast2) ([]frost.NonceCommitment, error) {
	if len(body.Commitments) != len(r.payloads) {
		return nil, fmt.Errorf("signing: %d commitment pairs, expected %d", len(body.Commitments), len(r.payloads))
	}
	decoded := make([]frost.NonceCommitment, len(body.Commitments))
	for k, wire := range body.Commitments {
		d, e := r.Group().NewPoint(), r.Group().NewPoint()
		if err := d.UnmarshalBinary(wire.D); err != nil {
			return nil, fmt.Errorf("signing: commitment %d: %w", k, err)
		}
		if err := e.UnmarshalBinary(wire.E); err != nil {
			return nil, fmt.Errorf("signing: commitment %d: %w", k, err)
		}
		if d.IsIdentity() || e.IsIdentity() {
			return nil, fmt.Errorf("signing: commitment %d is the identity", k)
		}
		decoded[k] = frost.NonceCommitment{D: d, E: e}
	}
	return decoded, nil
}

// VerifyMessage implements round.Round.
func (r *round2) VerifyMessage(msg round.Message) error {
	body, ok := msg.Content.(*broadcast2)
	if !ok || body == nil {
		return round.ErrInvalidContent
	}
	_, err := r.decodeCommitments(body)
	return err
}

// StoreMessage implements round.Round.
func (r *round2) StoreMessage(msg round.Message) error {
	body := msg.Content.(*broadcast2)
	decoded, err := r.decodeCommitments(body)
	if err != nil {
		return err
	}
	view, err := round.CanonicalEncode(body)
	if err != nil {
		return err
	}
	r.commitments[msg.From] = decoded
	r.views[msg.From] = view
	return nil
}

// Finalize implements round.Round: every signer echoes what it received so
// the next round can agree on one commitment set per signer.
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
func (round2) MessageContent() round.Content { return &broadcast2{} }

// Number implements round.Round.
func (round2) Number() round.Number { return 2 }
