package keygen

import (
	"fmt"

	"github.com/fluxline/multisig/internal/frost"
	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/math/polynomial"
	"github.com/fluxline/multisig/pkg/math/sample"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/fxamacker/cbor/v2"
)

// round6 is the echo round over the complaints. Once the complaint set is
// agreed, blame is decided: a well-formed complaint blames the accused
// share dealer, a malformed one blames the complainer. With no complaints
// left the key material is assembled.
type round6 struct {
	*round5
	reports6 map[party.ID]map[party.ID][]byte
}

type broadcast6 struct {
	// Views maps each complainer to the canonical encoding of the round 5
	// content received from it.
	Views map[party.ID][]byte
}

// RoundNumber implements round.Content.
func (broadcast6) RoundNumber() round.Number { return 6 }

// VerifyMessage implements round.Round.
func (r *round6) VerifyMessage(msg round.Message) error {
	body, ok := msg.Content.(*broadcast6)
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
func (r *round6) StoreMessage(msg round.Message) error {
	body := msg.Content.(*broadcast6)
	r.reports6[msg.From] = body.Views
	return nil
}

// Finalize implements round.Round.
func (r *round6) Finalize(out chan<- *round.Message) (round.Session, error) {
	agreed, blamed := round.AgreeBroadcast(r.views5, r.reports6, r.Threshold()+1)
	if blamed.Len() > 0 {
		return r.AbortRound(fmt.Errorf("keygen: inconsistent complaint broadcast"), blamed...), nil
	}
	var culprits []party.ID
	for _, sender := range round.Changed(r.views5, agreed) {
		body := &broadcast5{}
		if err := cbor.Unmarshal(agreed[sender], body); err != nil {
			culprits = append(culprits, sender)
			continue
		}
		r.complaints[sender] = body.Accused
		r.views5[sender] = agreed[sender]
	}
	if len(culprits) > 0 {
		return r.AbortRound(fmt.Errorf("keygen: invalid complaint broadcast"), culprits...), nil
	}

	if culprits := r.judgeComplaints(); culprits.Len() > 0 {
		return r.AbortRound(fmt.Errorf("keygen: invalid secret shares"), culprits...), nil
	}

	result, err := r.assembleResult()
	if err != nil {
		// No single party is at fault for an incompatible aggregate key:
		// report everyone and let the caller retry with a fresh ceremony.
		return r.AbortRound(err, r.PartyIDs()...), nil
	}

	if !r.verifyKey {
		return r.ResultRound(result), nil
	}

	// Key verification: run one signing pass over the scheme's test payload
	// before releasing the shares.
	nonce := frost.Nonce{
		D: sample.Scalar(r.Rand(), r.Group()),
		E: sample.Scalar(r.Rand(), r.Group()),
	}
	commitment := frost.NonceCommitment{D: nonce.D.ActOnBase(), E: nonce.E.ActOnBase()}
	ownContent := &broadcast7{D: commitment.D, E: commitment.E}
	if err := r.BroadcastMessage(out, ownContent); err != nil {
		return r, err
	}
	ownView, err := round.CanonicalEncode(ownContent)
	if err != nil {
		return r, err
	}
	return &round7{
		round6:       r,
		result:       result,
		nonce:        nonce,
		commitments7: map[party.ID]frost.NonceCommitment{r.SelfID(): commitment},
		views7:       map[party.ID][]byte{r.SelfID(): ownView},
	}, nil
}

// judgeComplaints maps the agreed complaint set to a blame set. The share
// itself is never revealed: a single well-formed complaint is enough to
// abort, matching the no-revealing design.
func (r *round6) judgeComplaints() party.IDSlice {
	var culprits []party.ID
	for complainer, accusedList := range r.complaints {
		for _, accused := range accusedList {
			if accused == complainer || !r.PartyIDs().Contains(accused) {
				culprits = append(culprits, complainer)
				continue
			}
			culprits = append(culprits, accused)
		}
	}
	return party.NewIDSlice(culprits)
}

func (r *round6) assembleResult() (*Result, error) {
	// Φ = Σⱼ Φⱼ commits to the joint polynomial f = Σⱼ fⱼ.
	summed := make([]*polynomial.Exponent, 0, r.N())
	for _, id := range r.PartyIDs() {
		summed = append(summed, r.commitments[id])
	}
	joint, err := polynomial.Sum(summed)
	if err != nil {
		return nil, fmt.Errorf("keygen: %w", err)
	}

	// xᵢ = Σⱼ fⱼ(xᵢ)
	privateShare := r.Group().NewScalar()
	for _, id := range r.PartyIDs() {
		privateShare.Add(r.shares[id])
		r.shares[id].Wipe()
	}
	r.poly.Wipe()

	publicKey := joint.Constant()
	verificationShares := make(map[party.ID]curve.Point, r.N())
	for _, id := range r.PartyIDs() {
		verificationShares[id] = joint.Evaluate(id.Scalar(r.Group()))
	}

	// Schemes with x-only key encodings fix the y parity by negating the
	// whole sharing, identically on every node.
	if r.scheme.KeyNeedsNegation(publicKey) {
		privateShare.Negate()
		publicKey = publicKey.Negate()
		for id, share := range verificationShares {
			verificationShares[id] = share.Negate()
		}
	}
	if !r.scheme.IsKeyCompatible(publicKey) {
		privateShare.Wipe()
		return nil, fmt.Errorf("keygen: aggregate key is not usable with scheme %s", r.scheme.Name())
	}

	return &Result{
		Scheme:             r.scheme,
		Threshold:          r.Threshold(),
		PrivateShare:       privateShare,
		PublicKey:          publicKey,
		VerificationShares: verificationShares,
	}, nil
}

// MessageContent implements round.Round.
func (round6) MessageContent() round.Content { return &broadcast6{} }

// Number implements round.Round.
func (round6) Number() round.Number { return 6 }
