package round

import "errors"

// Output is a terminal round containing the result of the protocol.
type Output struct {
	*Helper
	Result interface{}
}

func (Output) VerifyMessage(Message) error {
	return errors.New("round: output round does not accept messages")
}
func (Output) StoreMessage(Message) error { return nil }
func (r *Output) Finalize(chan<- *Message) (Session, error) {
	return r, errors.New("round: output round is already finalized")
}
func (Output) MessageContent() Content { return nil }
func (Output) Number() Number          { return 0 }
