package round

import (
	"io"

	"github.com/fluxline/multisig/pkg/hash"
	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/party"
)

// Info describes a protocol execution before it starts.
type Info struct {
	// ProtocolID is an identifier for this protocol.
	ProtocolID string
	// FinalRoundNumber is the number of rounds before the output round.
	FinalRoundNumber Number
	// CeremonyID is the globally assigned id of this ceremony, bound into
	// the session transcript.
	CeremonyID uint64
	// SelfID is this party's ID.
	SelfID party.ID
	// PartyIDs are the participating parties, in any order.
	PartyIDs []party.ID
	// Threshold is the maximum number of parties assumed corrupted during
	// this execution. Signing requires Threshold+1 participants.
	Threshold int
	// Group is the curve group used for this protocol execution.
	Group curve.Curve
	// Rand is the source of secret randomness, crypto/rand.Reader if nil.
	Rand io.Reader
}

// Session represents the current execution of a round-based protocol.
// It embeds the current round, and provides the execution's parameters.
type Session interface {
	Round
	// Group returns the group used for this protocol execution.
	Group() curve.Curve
	// Hash returns a cloned hash function with the current transcript state.
	Hash() *hash.Hash
	// ProtocolID is an identifier for this protocol.
	ProtocolID() string
	// FinalRoundNumber is the number of rounds before the output round.
	FinalRoundNumber() Number
	// CeremonyID is the globally assigned id of this ceremony.
	CeremonyID() uint64
	// SSID is the unique identifier for this protocol execution.
	SSID() []byte
	// SelfID is this party's ID.
	SelfID() party.ID
	// PartyIDs is a sorted slice of the participating parties.
	PartyIDs() party.IDSlice
	// OtherPartyIDs is PartyIDs without SelfID.
	OtherPartyIDs() party.IDSlice
	// Threshold is the maximum number of corrupted parties tolerated.
	Threshold() int
	// N returns the total number of participants.
	N() int
	// Rand is the source of secret randomness.
	Rand() io.Reader
}
