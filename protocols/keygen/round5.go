package keygen

import (
	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/party"
)

// round5 collects every party's complaint list.
type round5 struct {
	*round4
	complaints map[party.ID]party.IDSlice
	views5     map[party.ID][]byte
}

type broadcast5 struct {
	// Accused lists the parties whose private share failed verification
	// against their commitment. Usually empty.
	Accused party.IDSlice
}

// RoundNumber implements round.Content.
func (broadcast5) RoundNumber() round.Number { return 5 }

// VerifyMessage implements round.Round.
func (r *round5) VerifyMessage(msg round.Message) error {
	body, ok := msg.Content.(*broadcast5)
	if !ok || body == nil {
		return round.ErrInvalidContent
	}
	// Malformed accusations blame the complainer, decided in round 6 once
	// all nodes have agreed on the complaint set.
	return nil
}

// StoreMessage implements round.Round.
func (r *round5) StoreMessage(msg round.Message) error {
	body := msg.Content.(*broadcast5)
	view, err := round.CanonicalEncode(body)
	if err != nil {
		return err
	}
	r.complaints[msg.From] = body.Accused
	r.views5[msg.From] = view
	return nil
}

// Finalize implements round.Round.
func (r *round5) Finalize(out chan<- *round.Message) (round.Session, error) {
	if err := r.BroadcastMessage(out, &broadcast6{Views: r.views5}); err != nil {
		return r, err
	}
	return &round6{
		round5:   r,
		reports6: map[party.ID]map[party.ID][]byte{r.SelfID(): r.views5},
	}, nil
}

// MessageContent implements round.Round.
func (round5) MessageContent() round.Content { return &broadcast5{} }

// Number implements round.Round.
func (round5) Number() round.Number { return 5 }
