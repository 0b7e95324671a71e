// Package keygen implements distributed key generation:
// Feldman commitments to random polynomials with a Schnorr proof of
// knowledge, echo verification of the commitments, private Shamir shares
// checked against the commitments, and a complaint round deciding blame.
// An optional verification phase signs a test payload with the fresh key
// before the result is released.
package keygen

import (
	"fmt"
	"io"

	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/hash"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/fluxline/multisig/pkg/scheme"
)

const protocolID = "frost/keygen"

const (
	// finalRound is the last round without key verification.
	finalRound round.Number = 6
	// finalRoundWithVerification adds a signing pass over a test payload.
	finalRoundWithVerification round.Number = 10
)

// Config describes one keygen ceremony.
type Config struct {
	// Scheme the key is generated for.
	Scheme scheme.Scheme
	// CeremonyID is the globally assigned ceremony id.
	CeremonyID uint64
	// SelfID is this party.
	SelfID party.ID
	// Participants holds every key-share holder, including SelfID.
	Participants []party.ID
	// Threshold is the maximum number of corrupted parties tolerated;
	// signing later requires Threshold+1 of the Participants.
	Threshold int
	// VerifyKey runs a signing pass over Scheme.SigningPayloadForTest
	// before releasing the result.
	VerifyKey bool
	// Rand is the source of secret randomness, crypto/rand.Reader if nil.
	Rand io.Reader
}

// Start validates the configuration and returns the first round.
func Start(config Config) (round.Session, error) {
	if config.Scheme == nil {
		return nil, fmt.Errorf("keygen: missing scheme")
	}
	final := finalRound
	if config.VerifyKey {
		final = finalRoundWithVerification
	}
	helper, err := round.NewSession(round.Info{
		ProtocolID:       protocolID,
		FinalRoundNumber: final,
		CeremonyID:       config.CeremonyID,
		SelfID:           config.SelfID,
		PartyIDs:         config.Participants,
		Threshold:        config.Threshold,
		Group:            config.Scheme.Curve(),
		Rand:             config.Rand,
	}, hash.BytesWithDomain{
		TheDomain: "Scheme",
		Bytes:     []byte(config.Scheme.Name()),
	})
	if err != nil {
		return nil, fmt.Errorf("keygen: %w", err)
	}
	return &round1{
		Helper:    helper,
		scheme:    config.Scheme,
		verifyKey: config.VerifyKey,
	}, nil
}
