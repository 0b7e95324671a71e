package round

import "errors"

// ErrOutChanFull indicates that the out channel could not accept another
// message. The channel is expected to be buffered with enough capacity for
// a full round of messages, so this is a programming error.
var ErrOutChanFull = errors.New("round: out channel is full")

var (
	// ErrInvalidContent indicates a message whose content type does not
	// match the current round.
	ErrInvalidContent = errors.New("round: message content is invalid")
	// ErrNilFields indicates a message with missing fields.
	ErrNilFields = errors.New("round: message contains nil fields")
)

// Round is one step of a ceremony protocol.
//
// All rounds move strictly forward: a Round either produces the next Round,
// or a terminal Output/Abort, through Finalize.
type Round interface {
	// VerifyMessage checks a message from another party against the protocol
	// rules for this round. The content can be cast to the round's content
	// type without an error check.
	// This function must not modify round state: it may run concurrently
	// with other verifications.
	VerifyMessage(msg Message) error

	// StoreMessage is called after VerifyMessage and records the relevant
	// fields of the content.
	StoreMessage(msg Message) error

	// Finalize is called once messages from all awaited parties have been
	// stored, or when the stage deadline fired. Messages for the next round
	// are written to out, which must be buffered with sufficient capacity.
	//
	// The last round returns a Session produced by Helper.ResultRound;
	// a detected fault returns one produced by Helper.AbortRound.
	Finalize(out chan<- *Message) (Session, error)

	// MessageContent returns a fresh content of the type expected by this
	// round, ready to be unmarshalled into. Interface-typed fields are
	// pre-populated with group-bound empty values.
	// The first round of a protocol returns nil: it receives nothing.
	MessageContent() Content

	// Number is this round's position in the protocol, starting at 1.
	Number() Number
}

// Content is the payload of one round's message.
type Content interface {
	RoundNumber() Number
}
