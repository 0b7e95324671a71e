package ceremony

import (
	"fmt"

	"github.com/fluxline/multisig/internal/round"
	"github.com/fxamacker/cbor/v2"
)

// CurrentProtocolVersion is the ceremony wire protocol version. Messages
// carrying any other version are dropped: nodes must upgrade in lock step
// before a version bump activates.
const CurrentProtocolVersion uint16 = 1

// VersionedCeremonyMessage is the outermost wire envelope exchanged
// between nodes.
type VersionedCeremonyMessage struct {
	Version uint16
	Payload []byte
}

// ceremonyMessage is the versioned payload: one protocol round content,
// tagged with the ceremony it belongs to.
type ceremonyMessage struct {
	CeremonyID  uint64
	RoundNumber round.Number
	Broadcast   bool
	Content     []byte
}

// EncodeMessage wraps one outgoing round message into the wire envelope.
func EncodeMessage(ceremonyID uint64, msg *round.Message) ([]byte, error) {
	content, err := cbor.Marshal(msg.Content)
	if err != nil {
		return nil, fmt.Errorf("ceremony: encode content: %w", err)
	}
	payload, err := cbor.Marshal(ceremonyMessage{
		CeremonyID:  ceremonyID,
		RoundNumber: msg.Content.RoundNumber(),
		Broadcast:   msg.Broadcast,
		Content:     content,
	})
	if err != nil {
		return nil, fmt.Errorf("ceremony: encode message: %w", err)
	}
	return cbor.Marshal(VersionedCeremonyMessage{
		Version: CurrentProtocolVersion,
		Payload: payload,
	})
}

// errVersionMismatch distinguishes drops the metrics report separately.
var errVersionMismatch = fmt.Errorf("ceremony: protocol version mismatch")

func decodeMessage(data []byte) (*ceremonyMessage, error) {
	var envelope VersionedCeremonyMessage
	if err := cbor.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("ceremony: decode envelope: %w", err)
	}
	if envelope.Version != CurrentProtocolVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", errVersionMismatch, envelope.Version, CurrentProtocolVersion)
	}
	var msg ceremonyMessage
	if err := cbor.Unmarshal(envelope.Payload, &msg); err != nil {
		return nil, fmt.Errorf("ceremony: decode message: %w", err)
	}
	if msg.RoundNumber == 0 {
		return nil, fmt.Errorf("ceremony: round number missing")
	}
	return &msg, nil
}
