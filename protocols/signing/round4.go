package signing

import (
	"fmt"

	"github.com/fluxline/multisig/internal/frost"
	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/party"
)

// perPayloadState holds the signing state derived in round 3, indexed by
// payload.
type perPayloadState struct {
	commitments      []map[party.ID]frost.NonceCommitment
	rho              []map[party.ID]curve.Scalar
	groupCommitments []curve.Point
	challenges       []curve.Scalar
}

// round4 collects every signer's signature shares.
type round4 struct {
	*round3
	state    *perPayloadState
	lagrange map[party.ID]curve.Scalar
	// shares maps each signer to its decoded shares, in payload order.
	shares map[party.ID][]curve.Scalar
	views4 map[party.ID][]byte
}

type broadcast4 struct {
	// Shares holds one signature share per payload, in payload order, in
	// scalar encoding.
	Shares [][]byte
}

// RoundNumber implements round.Content.
func (broadcast4) RoundNumber() round.Number { return 4 }

// decodeShares validates a round 4 content and decodes the shares. It is
// used on first receipt and when adopting an echo-agreed value.
func (r *round4) decodeShares(body *broadcast4) ([]curve.Scalar, error) {
	if len(body.Shares) != len(r.payloads) {
		return nil, fmt.Errorf("signing: %d signature shares, expected %d", len(body.Shares), len(r.payloads))
	}
	decoded := make([]curve.Scalar, len(body.Shares))
	for k, shareBytes := range body.Shares {
		share := r.Group().NewScalar()
		if err := share.UnmarshalBinary(shareBytes); err != nil {
			return nil, fmt.Errorf("signing: signature share %d: %w", k, err)
		}
		decoded[k] = share
	}
	return decoded, nil
}

// VerifyMessage implements round.Round.
func (r *round4) VerifyMessage(msg round.Message) error {
	body, ok := msg.Content.(*broadcast4)
	if !ok || body == nil {
		return round.ErrInvalidContent
	}
	_, err := r.decodeShares(body)
	return err
}

// StoreMessage implements round.Round.
func (r *round4) StoreMessage(msg round.Message) error {
	body := msg.Content.(*broadcast4)
	decoded, err := r.decodeShares(body)
	if err != nil {
		return err
	}
	view, err := round.CanonicalEncode(body)
	if err != nil {
		return err
	}
	r.shares[msg.From] = decoded
	r.views4[msg.From] = view
	return nil
}

// Finalize implements round.Round.
func (r *round4) Finalize(out chan<- *round.Message) (round.Session, error) {
	if err := r.BroadcastMessage(out, &broadcast5{Views: r.views4}); err != nil {
		return r, err
	}
	return &round5{
		round4:   r,
		reports5: map[party.ID]map[party.ID][]byte{r.SelfID(): r.views4},
	}, nil
}

// MessageContent implements round.Round.
func (round4) MessageContent() round.Content { return &broadcast4{} }

// Number implements round.Round.
func (round4) Number() round.Number { return 4 }
