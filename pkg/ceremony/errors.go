package ceremony

import (
	"fmt"

	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/party"
)

// ErrorCode classifies ceremony failures for reporting.
type ErrorCode string

const (
	// ErrCodeTimeout: a stage deadline passed before every party
	// delivered a valid message. Culprits are the missing or faulty
	// senders.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeProtocolFault: the protocol itself identified misbehavior
	// and aborted.
	ErrCodeProtocolFault ErrorCode = "protocol_fault"
	// ErrCodeShutdown: the manager stopped while the ceremony was
	// running.
	ErrCodeShutdown ErrorCode = "shutdown"
)

// Error reports a failed ceremony with the parties responsible, so the
// caller can feed the blame into its consensus layer.
type Error struct {
	Code        ErrorCode
	CeremonyID  uint64
	RoundNumber round.Number
	// Culprits are the parties at fault. An unattributable failure lists
	// every participant.
	Culprits party.IDSlice
	// Reason is the underlying failure description.
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ceremony %d failed in round %d (%s): %s, blaming %v",
		e.CeremonyID, e.RoundNumber, e.Code, e.Reason, e.Culprits)
}

// Outcome is the terminal report of one ceremony. Exactly one of Result
// and Failure is set.
type Outcome struct {
	CeremonyID uint64
	// Result is the protocol output: *keygen.Result for keygen
	// ceremonies, [][]byte signatures for signing ceremonies.
	Result  interface{}
	Failure *Error
}
