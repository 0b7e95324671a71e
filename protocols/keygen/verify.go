package keygen

import (
	"fmt"

	"github.com/fluxline/multisig/internal/frost"
	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/math/polynomial"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/fxamacker/cbor/v2"
)

// Rounds 7 through 10 verify the fresh key by signing the scheme's test
// payload with it: nonce commitments, an echo round, signature shares, and
// a final echo round with per-share checks. Only then is the result
// released.

// round7 collects every party's nonce commitment.
type round7 struct {
	*round6
	result       *Result
	nonce        frost.Nonce
	commitments7 map[party.ID]frost.NonceCommitment
	views7       map[party.ID][]byte
}

type broadcast7 struct {
	D curve.Point
	E curve.Point
}

// RoundNumber implements round.Content.
func (broadcast7) RoundNumber() round.Number { return 7 }

func validateNonceCommitment(body *broadcast7) error {
	if body.D == nil || body.E == nil {
		return round.ErrNilFields
	}
	if body.D.IsIdentity() || body.E.IsIdentity() {
		return fmt.Errorf("keygen: identity nonce commitment")
	}
	return nil
}

// VerifyMessage implements round.Round.
func (r *round7) VerifyMessage(msg round.Message) error {
	body, ok := msg.Content.(*broadcast7)
	if !ok || body == nil {
		return round.ErrInvalidContent
	}
	return validateNonceCommitment(body)
}

// StoreMessage implements round.Round.
func (r *round7) StoreMessage(msg round.Message) error {
	body := msg.Content.(*broadcast7)
	view, err := round.CanonicalEncode(body)
	if err != nil {
		return err
	}
	r.commitments7[msg.From] = frost.NonceCommitment{D: body.D, E: body.E}
	r.views7[msg.From] = view
	return nil
}

// Finalize implements round.Round.
func (r *round7) Finalize(out chan<- *round.Message) (round.Session, error) {
	if err := r.BroadcastMessage(out, &broadcast8{Views: r.views7}); err != nil {
		return r, err
	}
	return &round8{
		round7:   r,
		reports8: map[party.ID]map[party.ID][]byte{r.SelfID(): r.views7},
	}, nil
}

// MessageContent implements round.Round.
func (r *round7) MessageContent() round.Content {
	return &broadcast7{D: r.Group().NewPoint(), E: r.Group().NewPoint()}
}

// Number implements round.Round.
func (round7) Number() round.Number { return 7 }

// round8 is the echo round over the nonce commitments, after which each
// party computes its signature share over the test payload.
type round8 struct {
	*round7
	reports8 map[party.ID]map[party.ID][]byte
}

type broadcast8 struct {
	Views map[party.ID][]byte
}

// RoundNumber implements round.Content.
func (broadcast8) RoundNumber() round.Number { return 8 }

// VerifyMessage implements round.Round.
func (r *round8) VerifyMessage(msg round.Message) error {
	body, ok := msg.Content.(*broadcast8)
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
func (r *round8) StoreMessage(msg round.Message) error {
	body := msg.Content.(*broadcast8)
	r.reports8[msg.From] = body.Views
	return nil
}

// Finalize implements round.Round.
func (r *round8) Finalize(out chan<- *round.Message) (round.Session, error) {
	agreed, blamed := round.AgreeBroadcast(r.views7, r.reports8, r.Threshold()+1)
	if blamed.Len() > 0 {
		return r.AbortRound(fmt.Errorf("keygen: inconsistent nonce commitment broadcast"), blamed...), nil
	}
	var culprits []party.ID
	for _, sender := range round.Changed(r.views7, agreed) {
		body := &broadcast7{D: r.Group().NewPoint(), E: r.Group().NewPoint()}
		if err := cbor.Unmarshal(agreed[sender], body); err != nil {
			culprits = append(culprits, sender)
			continue
		}
		if err := validateNonceCommitment(body); err != nil {
			culprits = append(culprits, sender)
			continue
		}
		r.commitments7[sender] = frost.NonceCommitment{D: body.D, E: body.E}
		r.views7[sender] = agreed[sender]
	}
	if len(culprits) > 0 {
		return r.AbortRound(fmt.Errorf("keygen: invalid nonce commitment broadcast"), culprits...), nil
	}

	payload := r.scheme.SigningPayloadForTest()
	rho, err := frost.BindingFactors(r.Hash(), r.Group(), r.PartyIDs(), r.commitments7, payload)
	if err != nil {
		return r, err
	}
	groupCommitment := frost.GroupCommitment(r.Group(), r.PartyIDs(), r.commitments7, rho)

	// Schemes transmitting x-only nonces need R with even y: every node
	// negates the entire nonce layer the same way.
	if r.scheme.NonceNeedsNegation(groupCommitment) {
		r.nonce.D.Negate()
		r.nonce.E.Negate()
		for id, commitment := range r.commitments7 {
			r.commitments7[id] = frost.NonceCommitment{
				D: commitment.D.Negate(),
				E: commitment.E.Negate(),
			}
		}
		groupCommitment = groupCommitment.Negate()
	}

	challenge := r.scheme.Challenge(groupCommitment, r.result.PublicKey, payload)
	lagrange, err := polynomial.Lagrange(r.Group(), r.PartyIDs())
	if err != nil {
		return r, err
	}

	ownShare := frost.SignatureShare(r.nonce, rho[r.SelfID()], lagrange[r.SelfID()], r.result.PrivateShare, challenge)
	r.nonce.Wipe()

	ownContent := &broadcast9{Share: ownShare}
	if err := r.BroadcastMessage(out, ownContent); err != nil {
		return r, err
	}
	ownView, err := round.CanonicalEncode(ownContent)
	if err != nil {
		return r, err
	}
	return &round9{
		round8:          r,
		rho:             rho,
		lagrange:        lagrange,
		groupCommitment: groupCommitment,
		challenge:       challenge,
		shares9:         map[party.ID]curve.Scalar{r.SelfID(): ownShare},
		views9:          map[party.ID][]byte{r.SelfID(): ownView},
	}, nil
}

// MessageContent implements round.Round.
func (round8) MessageContent() round.Content { return &broadcast8{} }

// Number implements round.Round.
func (round8) Number() round.Number { return 8 }

// round9 collects the signature shares over the test payload.
type round9 struct {
	*round8
	rho             map[party.ID]curve.Scalar
	lagrange        map[party.ID]curve.Scalar
	groupCommitment curve.Point
	challenge       curve.Scalar
	shares9         map[party.ID]curve.Scalar
	views9          map[party.ID][]byte
}

type broadcast9 struct {
	Share curve.Scalar
}

// RoundNumber implements round.Content.
func (broadcast9) RoundNumber() round.Number { return 9 }

// VerifyMessage implements round.Round.
func (r *round9) VerifyMessage(msg round.Message) error {
	body, ok := msg.Content.(*broadcast9)
	if !ok || body == nil {
		return round.ErrInvalidContent
	}
	if body.Share == nil {
		return round.ErrNilFields
	}
	return nil
}

// StoreMessage implements round.Round.
func (r *round9) StoreMessage(msg round.Message) error {
	body := msg.Content.(*broadcast9)
	view, err := round.CanonicalEncode(body)
	if err != nil {
		return err
	}
	r.shares9[msg.From] = body.Share
	r.views9[msg.From] = view
	return nil
}

// Finalize implements round.Round.
func (r *round9) Finalize(out chan<- *round.Message) (round.Session, error) {
	if err := r.BroadcastMessage(out, &broadcast10{Views: r.views9}); err != nil {
		return r, err
	}
	return &round10{
		round9:    r,
		reports10: map[party.ID]map[party.ID][]byte{r.SelfID(): r.views9},
	}, nil
}

// MessageContent implements round.Round.
func (r *round9) MessageContent() round.Content {
	return &broadcast9{Share: r.Group().NewScalar()}
}

// Number implements round.Round.
func (round9) Number() round.Number { return 9 }

// round10 is the final echo round: it checks each signature share against
// the party's verification share, aggregates, and verifies the resulting
// signature under the scheme before releasing the key.
type round10 struct {
	*round9
	reports10 map[party.ID]map[party.ID][]byte
}

type broadcast10 struct {
	Views map[party.ID][]byte
}

// RoundNumber implements round.Content.
func (broadcast10) RoundNumber() round.Number { return 10 }

// VerifyMessage implements round.Round.
func (r *round10) VerifyMessage(msg round.Message) error {
	body, ok := msg.Content.(*broadcast10)
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
func (r *round10) StoreMessage(msg round.Message) error {
	body := msg.Content.(*broadcast10)
	r.reports10[msg.From] = body.Views
	return nil
}

// Finalize implements round.Round.
func (r *round10) Finalize(chan<- *round.Message) (round.Session, error) {
	agreed, blamed := round.AgreeBroadcast(r.views9, r.reports10, r.Threshold()+1)
	if blamed.Len() > 0 {
		return r.AbortRound(fmt.Errorf("keygen: inconsistent signature share broadcast"), blamed...), nil
	}
	var culprits []party.ID
	for _, sender := range round.Changed(r.views9, agreed) {
		body := &broadcast9{Share: r.Group().NewScalar()}
		if err := cbor.Unmarshal(agreed[sender], body); err != nil || body.Share == nil {
			culprits = append(culprits, sender)
			continue
		}
		r.shares9[sender] = body.Share
		r.views9[sender] = agreed[sender]
	}
	if len(culprits) > 0 {
		return r.AbortRound(fmt.Errorf("keygen: invalid signature share broadcast"), culprits...), nil
	}

	// Each share is independently checkable, so failures are precisely
	// attributable. Our own share is checked too: the agreed set may have
	// replaced it.
	for _, id := range r.PartyIDs() {
		if !frost.VerifyShare(r.shares9[id], r.commitments7[id], r.rho[id], r.lagrange[id], r.challenge, r.result.VerificationShares[id]) {
			culprits = append(culprits, id)
		}
	}
	if len(culprits) > 0 {
		return r.AbortRound(fmt.Errorf("keygen: invalid verification signature shares"), culprits...), nil
	}

	z := frost.Aggregate(r.Group(), r.PartyIDs(), r.shares9)
	signature := r.scheme.BuildSignature(r.groupCommitment, z)
	payload := r.scheme.SigningPayloadForTest()
	if err := r.scheme.VerifySignature(signature, r.result.PublicKey, payload); err != nil {
		// Every share checked out individually, yet the aggregate failed:
		// nobody can be blamed.
		return r.AbortRound(fmt.Errorf("keygen: key verification signature rejected: %w", err), r.PartyIDs()...), nil
	}
	return r.ResultRound(r.result), nil
}

// MessageContent implements round.Round.
func (round10) MessageContent() round.Content { return &broadcast10{} }

// Number implements round.Round.
func (round10) Number() round.Number { return 10 }
