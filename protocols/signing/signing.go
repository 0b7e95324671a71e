// Package signing implements threshold signing with an existing key: each
// signer commits to a fresh nonce pair per payload, the commitments are
// echo-verified, and the signature shares are individually checked against
// the verification shares before aggregation, so a bad share precisely
// identifies its sender.
package signing

import (
	"fmt"
	"io"

	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/hash"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/fluxline/multisig/protocols/keygen"
)

const protocolID = "frost/sign"

const finalRound round.Number = 5

// Config describes one signing ceremony.
type Config struct {
	// Key is the sharing produced by a keygen ceremony.
	Key *keygen.Result
	// CeremonyID is the globally assigned ceremony id.
	CeremonyID uint64
	// SelfID is this party.
	SelfID party.ID
	// Signers is the subset of share holders participating, including
	// SelfID. At least Key.Threshold+1 are required.
	Signers []party.ID
	// Payloads are the messages to sign, one signature each.
	Payloads [][]byte
	// Rand is the source of secret randomness, crypto/rand.Reader if nil.
	Rand io.Reader
}

// Start validates the configuration and returns the first round.
func Start(config Config) (round.Session, error) {
	key := config.Key
	if key == nil || key.PrivateShare == nil || key.PublicKey == nil || key.Scheme == nil {
		return nil, fmt.Errorf("signing: missing key material")
	}
	s := key.Scheme

	if len(config.Payloads) == 0 {
		return nil, fmt.Errorf("signing: no payloads")
	}
	if max := s.MaxSigningPayloads(); len(config.Payloads) > max {
		return nil, fmt.Errorf("signing: %d payloads exceeds the maximum of %d for scheme %s", len(config.Payloads), max, s.Name())
	}
	for i, payload := range config.Payloads {
		if err := s.ValidatePayload(payload); err != nil {
			return nil, fmt.Errorf("signing: payload %d: %w", i, err)
		}
	}

	signers := party.NewIDSlice(config.Signers)
	if signers.Len() < key.Threshold+1 {
		return nil, fmt.Errorf("signing: %d signers, need at least %d", signers.Len(), key.Threshold+1)
	}
	for _, id := range signers {
		if _, ok := key.VerificationShares[id]; !ok {
			return nil, fmt.Errorf("signing: %s holds no share of this key", id)
		}
	}

	auxInfo := []hash.WriterToWithDomain{
		hash.BytesWithDomain{TheDomain: "Scheme", Bytes: []byte(s.Name())},
		hash.BytesWithDomain{TheDomain: "Public Key", Bytes: key.PubKeyBytes()},
	}
	for _, payload := range config.Payloads {
		auxInfo = append(auxInfo, hash.BytesWithDomain{TheDomain: "Payload", Bytes: payload})
	}

	helper, err := round.NewSession(round.Info{
		ProtocolID:       protocolID,
		FinalRoundNumber: finalRound,
		CeremonyID:       config.CeremonyID,
		SelfID:           config.SelfID,
		PartyIDs:         signers,
		Threshold:        key.Threshold,
		Group:            s.Curve(),
		Rand:             config.Rand,
	}, auxInfo...)
	if err != nil {
		return nil, fmt.Errorf("signing: %w", err)
	}
	return &round1{
		Helper:   helper,
		key:      key,
		payloads: config.Payloads,
	}, nil
}
