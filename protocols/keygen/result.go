package keygen

import (
	"errors"
	"fmt"

	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/fluxline/multisig/pkg/scheme"
	"github.com/fxamacker/cbor/v2"
)

// Result is the output of a successful keygen ceremony.
type Result struct {
	// Scheme the key was generated for.
	Scheme scheme.Scheme
	// Threshold is the maximum number of corrupted parties tolerated when
	// signing with this key: any Threshold+1 share holders may sign.
	Threshold int
	// PrivateShare is this party's secret share x_i. It never leaves the
	// process unencrypted and is wiped when the key is retired.
	PrivateShare curve.Scalar
	// PublicKey is the aggregate key Y.
	PublicKey curve.Point
	// VerificationShares maps every share holder to its public share
	// [f(x_j)]⋅G, used to attribute faulty signature shares.
	VerificationShares map[party.ID]curve.Point
}

// PubKeyBytes returns the scheme's canonical encoding of the aggregate key.
func (r *Result) PubKeyBytes() []byte {
	return r.Scheme.PubKeyBytes(r.PublicKey)
}

// PartyIDs returns the sorted share holders.
func (r *Result) PartyIDs() party.IDSlice {
	ids := make([]party.ID, 0, len(r.VerificationShares))
	for id := range r.VerificationShares {
		ids = append(ids, id)
	}
	return party.NewIDSlice(ids)
}

// Wipe clears the private share.
func (r *Result) Wipe() {
	if r.PrivateShare != nil {
		r.PrivateShare.Wipe()
	}
}

type resultWire struct {
	Scheme             string
	Threshold          int
	PrivateShare       []byte
	PublicKey          []byte
	VerificationShares map[party.ID][]byte
}

// MarshalBinary encodes the result for persistence.
func (r *Result) MarshalBinary() ([]byte, error) {
	wire := resultWire{
		Scheme:             r.Scheme.Name(),
		Threshold:          r.Threshold,
		VerificationShares: make(map[party.ID][]byte, len(r.VerificationShares)),
	}
	var err error
	if wire.PrivateShare, err = r.PrivateShare.MarshalBinary(); err != nil {
		return nil, fmt.Errorf("keygen: marshal result: %w", err)
	}
	if wire.PublicKey, err = r.PublicKey.MarshalBinary(); err != nil {
		return nil, fmt.Errorf("keygen: marshal result: %w", err)
	}
	for id, share := range r.VerificationShares {
		if wire.VerificationShares[id], err = share.MarshalBinary(); err != nil {
			return nil, fmt.Errorf("keygen: marshal result: %w", err)
		}
	}
	return cbor.Marshal(wire)
}

// UnmarshalResult decodes a persisted result.
func UnmarshalResult(data []byte) (*Result, error) {
	var wire resultWire
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("keygen: unmarshal result: %w", err)
	}
	s, err := scheme.ByName(wire.Scheme)
	if err != nil {
		return nil, fmt.Errorf("keygen: unmarshal result: %w", err)
	}
	group := s.Curve()

	result := &Result{
		Scheme:             s,
		Threshold:          wire.Threshold,
		PrivateShare:       group.NewScalar(),
		PublicKey:          group.NewPoint(),
		VerificationShares: make(map[party.ID]curve.Point, len(wire.VerificationShares)),
	}
	if err := result.PrivateShare.UnmarshalBinary(wire.PrivateShare); err != nil {
		return nil, fmt.Errorf("keygen: unmarshal result: %w", err)
	}
	if err := result.PublicKey.UnmarshalBinary(wire.PublicKey); err != nil {
		return nil, fmt.Errorf("keygen: unmarshal result: %w", err)
	}
	for id, shareBytes := range wire.VerificationShares {
		share := group.NewPoint()
		if err := share.UnmarshalBinary(shareBytes); err != nil {
			return nil, fmt.Errorf("keygen: unmarshal result: %w", err)
		}
		result.VerificationShares[id] = share
	}
	if len(result.VerificationShares) == 0 {
		return nil, errors.New("keygen: unmarshal result: no verification shares")
	}
	return result, nil
}
