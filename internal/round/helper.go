package round

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"unicode/utf8"

	"github.com/fluxline/multisig/pkg/hash"
	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/party"
)

// Helper implements Session without Round, and is embedded in the first
// round of a protocol so that the full struct implements Session.
type Helper struct {
	info Info

	// partyIDs is a sorted copy of Info.PartyIDs.
	partyIDs party.IDSlice
	// otherPartyIDs is the same as partyIDs without selfID.
	otherPartyIDs party.IDSlice

	// ssid is the unique identifier for this protocol execution.
	ssid []byte

	hash *hash.Hash

	rand io.Reader

	mtx sync.Mutex
}

// NewSession creates a *Helper for the given execution, validating the
// participant set and binding all session parameters into the transcript.
// auxInfo is a variable list of objects to include in the hash state, such
// as the key material a signing session operates on.
func NewSession(info Info, auxInfo ...hash.WriterToWithDomain) (*Helper, error) {
	partyIDs := party.NewIDSlice(info.PartyIDs)
	if !partyIDs.Valid() {
		return nil, errors.New("session: partyIDs invalid")
	}
	if !partyIDs.Contains(info.SelfID) {
		return nil, errors.New("session: selfID not included in partyIDs")
	}
	n := partyIDs.Len()
	if info.Threshold < 0 || info.Threshold > n-1 {
		return nil, fmt.Errorf("session: threshold %d is invalid for number of parties %d", info.Threshold, n)
	}
	if err := validatePartyIDs(partyIDs, info.Group); err != nil {
		return nil, err
	}

	h := hash.New()
	_ = h.WriteAny(hash.BytesWithDomain{
		TheDomain: "Protocol ID",
		Bytes:     []byte(info.ProtocolID),
	})
	if info.Group != nil {
		_ = h.WriteAny(hash.BytesWithDomain{
			TheDomain: "Group Name",
			Bytes:     []byte(info.Group.Name()),
		})
	}
	var ceremonyID [8]byte
	binary.BigEndian.PutUint64(ceremonyID[:], info.CeremonyID)
	_ = h.WriteAny(hash.BytesWithDomain{
		TheDomain: "Ceremony ID",
		Bytes:     ceremonyID[:],
	})
	_ = h.WriteAny(partyIDs)
	_ = h.WriteAny(uint32(info.Threshold))

	for _, a := range auxInfo {
		if a == nil {
			continue
		}
		if err := h.WriteAny(a); err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
	}

	randSource := info.Rand
	if randSource == nil {
		randSource = rand.Reader
	}

	return &Helper{
		info:          info,
		partyIDs:      partyIDs,
		otherPartyIDs: partyIDs.Remove(info.SelfID),
		ssid:          h.Clone().Sum(),
		hash:          h,
		rand:          randSource,
	}, nil
}

// validatePartyIDs rejects participant sets that later stages cannot
// handle: ids must be valid UTF-8 (cbor maps keyed by id refuse anything
// else), and each id's Shamir x-coordinate must be a distinct non-zero
// scalar so the interpolation domain is well defined.
func validatePartyIDs(partyIDs party.IDSlice, group curve.Curve) error {
	for _, id := range partyIDs {
		if !utf8.ValidString(string(id)) {
			return fmt.Errorf("session: party id %q is not valid UTF-8", id)
		}
	}
	if group == nil {
		return nil
	}
	scalars := make(map[string]party.ID, partyIDs.Len())
	for _, id := range partyIDs {
		scalar := id.Scalar(group)
		if scalar.IsZero() {
			return fmt.Errorf("session: party id %q maps to the zero scalar", id)
		}
		data, err := scalar.MarshalBinary()
		if err != nil {
			return fmt.Errorf("session: %w", err)
		}
		if other, clash := scalars[string(data)]; clash {
			return fmt.Errorf("session: party ids %q and %q map to the same scalar", other, id)
		}
		scalars[string(data)] = id
	}
	return nil
}

// HashForID returns a clone of the transcript hash, keyed by the given id.
func (h *Helper) HashForID(id party.ID) *hash.Hash {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	cloned := h.hash.Clone()
	if id != "" {
		_ = cloned.WriteAny(id)
	}
	return cloned
}

// UpdateHashState writes additional data to the transcript.
func (h *Helper) UpdateHashState(value hash.WriterToWithDomain) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	_ = h.hash.WriteAny(value)
}

// BroadcastMessage sends content to all participants. The content will be
// covered by a subsequent echo round.
func (h *Helper) BroadcastMessage(out chan<- *Message, broadcastContent Content) error {
	msg := &Message{
		From:      h.info.SelfID,
		Broadcast: true,
		Content:   broadcastContent,
	}
	select {
	case out <- msg:
		return nil
	default:
		return ErrOutChanFull
	}
}

// SendMessage sends content to a single party. out is expected to be a
// buffered channel with enough capacity for the full round.
func (h *Helper) SendMessage(out chan<- *Message, content Content, to party.ID) error {
	msg := &Message{
		From:    h.info.SelfID,
		To:      to,
		Content: content,
	}
	select {
	case out <- msg:
		return nil
	default:
		return ErrOutChanFull
	}
}

// Hash returns a copy of the transcript hash of this protocol execution.
func (h *Helper) Hash() *hash.Hash {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.hash.Clone()
}

// ResultRound returns a terminal round holding the protocol output.
func (h *Helper) ResultRound(result interface{}) Session {
	return &Output{
		Helper: h,
		Result: result,
	}
}

// AbortRound returns a terminal round holding the culprits identified
// during a faulty execution. The error returned by Round.Finalize in this
// case should still be nil.
func (h *Helper) AbortRound(err error, culprits ...party.ID) Session {
	return &Abort{
		Helper:   h,
		Culprits: party.NewIDSlice(culprits),
		Err:      err,
	}
}

func (h *Helper) ProtocolID() string       { return h.info.ProtocolID }
func (h *Helper) FinalRoundNumber() Number { return h.info.FinalRoundNumber }
func (h *Helper) CeremonyID() uint64       { return h.info.CeremonyID }
func (h *Helper) SSID() []byte             { return h.ssid }
func (h *Helper) SelfID() party.ID         { return h.info.SelfID }

func (h *Helper) PartyIDs() party.IDSlice      { return h.partyIDs }
func (h *Helper) OtherPartyIDs() party.IDSlice { return h.otherPartyIDs }

func (h *Helper) Threshold() int     { return h.info.Threshold }
func (h *Helper) N() int             { return h.partyIDs.Len() }
func (h *Helper) Group() curve.Curve { return h.info.Group }
func (h *Helper) Rand() io.Reader    { return h.rand }
