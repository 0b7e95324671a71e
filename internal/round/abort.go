package round

import "github.com/fluxline/multisig/pkg/party"

// Abort is a terminal round containing the parties who caused the failure.
// An empty Culprits slice indicates an unattributable failure: the caller
// reports the full participant set.
type Abort struct {
	*Helper
	Culprits party.IDSlice
	Err      error
}

func (Abort) VerifyMessage(Message) error                  { return nil }
func (Abort) StoreMessage(Message) error                   { return nil }
func (r *Abort) Finalize(chan<- *Message) (Session, error) { return r, nil }
func (Abort) MessageContent() Content                      { return nil }
func (Abort) Number() Number                               { return 0 }
