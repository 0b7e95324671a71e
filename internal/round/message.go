package round

import "github.com/fluxline/multisig/pkg/party"

// Message is a message sent during a round, either broadcast to all
// participants or addressed to a single one.
type Message struct {
	From, To party.ID
	// Broadcast is true when the content must reach every participant
	// identically: such contents are covered by a later echo round.
	Broadcast bool
	Content   Content
}

// IsFor returns true if the message is addressed to id.
func (msg Message) IsFor(id party.ID) bool {
	if msg.From == id {
		return false
	}
	return msg.Broadcast || msg.To == "" || msg.To == id
}
