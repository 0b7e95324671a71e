package signing

import (
	"fmt"

	"github.com/fluxline/multisig/internal/frost"
	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/math/sample"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/fluxline/multisig/protocols/keygen"
)

// round1 samples a fresh nonce pair per payload and broadcasts the
// commitments.
type round1 struct {
	*round.Helper
	key      *keygen.Result
	payloads [][]byte
}

// VerifyMessage implements round.Round: the first round receives nothing.
func (r *round1) VerifyMessage(round.Message) error { return nil }

// StoreMessage implements round.Round.
func (r *round1) StoreMessage(round.Message) error { return nil }

// Finalize implements round.Round.
func (r *round1) Finalize(out chan<- *round.Message) (round.Session, error) {
	nonces := make([]frost.Nonce, len(r.payloads))
	wires := make([]nonceCommitmentWire, len(r.payloads))
	for k := range r.payloads {
		nonces[k] = frost.Nonce{
			D: sample.Scalar(r.Rand(), r.Group()),
			E: sample.Scalar(r.Rand(), r.Group()),
		}
		var err error
		if wires[k].D, err = nonces[k].D.ActOnBase().MarshalBinary(); err != nil {
			return r, fmt.Errorf("signing: %w", err)
		}
		if wires[k].E, err = nonces[k].E.ActOnBase().MarshalBinary(); err != nil {
			return r, fmt.Errorf("signing: %w", err)
		}
	}

	ownContent := &broadcast2{Commitments: wires}
	if err := r.BroadcastMessage(out, ownContent); err != nil {
		return r, err
	}
	ownView, err := round.CanonicalEncode(ownContent)
	if err != nil {
		return r, err
	}

	next := &round2{
		round1:      r,
		nonces:      nonces,
		commitments: make(map[party.ID][]frost.NonceCommitment, r.N()),
		views:       map[party.ID][]byte{r.SelfID(): ownView},
	}
	own, err := next.decodeCommitments(ownContent)
	if err != nil {
		return r, err
	}
	next.commitments[r.SelfID()] = own
	return next, nil
}

// MessageContent implements round.Round.
func (round1) MessageContent() round.Content { return nil }

// Number implements round.Round.
func (round1) Number() round.Number { return 1 }
