// Package test drives multi-party protocol executions in-process, passing
// every message through its wire encoding, for use in protocol tests.
package test

import (
	"fmt"

	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/fxamacker/cbor/v2"
)

// Rule alters the behavior of one party to simulate a misbehaving or
// malicious participant.
type Rule interface {
	// ModifyBefore runs before the culprit's round is finalized.
	ModifyBefore(r round.Session)
	// ModifyAfter runs after the culprit's round is finalized.
	ModifyAfter(r round.Session)
	// ModifyContent may tamper with an outgoing content of the culprit,
	// after wire decoding and before delivery to `to`.
	ModifyContent(r round.Session, to party.ID, content round.Content)
	// Culprit returns the party whose behavior is modified.
	Culprit() party.ID
}

func finalize(r round.Session, capacity int) (round.Session, []*round.Message, error) {
	out := make(chan *round.Message, capacity)
	next, err := r.Finalize(out)
	close(out)
	if err != nil {
		return nil, nil, fmt.Errorf("test: party %s round %d: %w", r.SelfID(), r.Number(), err)
	}
	if next == nil {
		return nil, nil, fmt.Errorf("test: party %s round %d: nil next round", r.SelfID(), r.Number())
	}
	var msgs []*round.Message
	for msg := range out {
		msgs = append(msgs, msg)
	}
	return next, msgs, nil
}

func deliver(from round.Session, to round.Session, msg *round.Message, rule Rule) error {
	if !msg.IsFor(to.SelfID()) {
		return nil
	}
	data, err := cbor.Marshal(msg.Content)
	if err != nil {
		return fmt.Errorf("test: marshal content from %s: %w", msg.From, err)
	}
	content := to.MessageContent()
	if content == nil {
		return fmt.Errorf("test: party %s round %d accepts no content", to.SelfID(), to.Number())
	}
	if err := cbor.Unmarshal(data, content); err != nil {
		return fmt.Errorf("test: unmarshal content from %s: %w", msg.From, err)
	}
	if rule != nil && rule.Culprit() == from.SelfID() {
		rule.ModifyContent(from, to.SelfID(), content)
	}
	delivered := round.Message{From: msg.From, To: msg.To, Broadcast: msg.Broadcast, Content: content}
	if err := to.VerifyMessage(delivered); err != nil {
		return err
	}
	return to.StoreMessage(delivered)
}

func terminal(r round.Session) bool {
	switch r.(type) {
	case *round.Output, *round.Abort:
		return true
	}
	return false
}

// Rounds executes all sessions in lock step until every one is terminal.
// rule, when non-nil, modifies the culprit's behavior. Verification errors
// from honest parties are ignored here: the ceremony layer translates them
// into blame, which these tests assert through the terminal Abort rounds
// instead.
func Rounds(sessions []round.Session, rule Rule) error {
	n := len(sessions)
	for iteration := 0; iteration < 64; iteration++ {
		done := true
		for _, r := range sessions {
			if !terminal(r) {
				done = false
			}
		}
		if done {
			return nil
		}

		// Finalize every active session, collecting its outgoing messages.
		outgoing := make([][]*round.Message, n)
		for i, r := range sessions {
			if terminal(r) {
				continue
			}
			if rule != nil && rule.Culprit() == r.SelfID() {
				rule.ModifyBefore(r)
			}
			next, msgs, err := finalize(r, 2*n)
			if err != nil {
				return err
			}
			if rule != nil && rule.Culprit() == r.SelfID() {
				rule.ModifyAfter(next)
			}
			sessions[i], outgoing[i] = next, msgs
		}

		// Deliver, routing each message through its wire encoding.
		for i, msgs := range outgoing {
			for _, msg := range msgs {
				for j, to := range sessions {
					if i == j || terminal(to) {
						continue
					}
					// Ignore errors: a tampered message is dropped at the
					// recipient, and the protocol blames the sender later.
					_ = deliver(sessions[i], to, msg, rule)
				}
			}
		}
	}
	return fmt.Errorf("test: rounds did not terminate")
}

// Results gathers terminal rounds: protocol outputs and aborts.
func Results(sessions []round.Session) (outputs []*round.Output, aborts []*round.Abort) {
	for _, r := range sessions {
		switch t := r.(type) {
		case *round.Output:
			outputs = append(outputs, t)
		case *round.Abort:
			aborts = append(aborts, t)
		}
	}
	return outputs, aborts
}
