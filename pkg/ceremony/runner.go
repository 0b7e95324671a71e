package ceremony

import (
	"fmt"
	"time"

	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"
)

// runner drives one ceremony: it delivers incoming contents to the current
// round, queues messages that arrive early, and finalizes a round once all
// parties have delivered.
type runner struct {
	session round.Session
	outcome chan Outcome
	log     zerolog.Logger

	// received marks the parties whose message for the current round was
	// verified and stored.
	received map[party.ID]bool
	// faulted marks the parties whose message for the current round was
	// rejected. They are blamed when the stage times out.
	faulted map[party.ID]bool
	// future holds messages for rounds we have not reached, one per sender
	// and round.
	future map[round.Number]map[party.ID]*ceremonyMessage

	started  time.Time
	deadline time.Time
}

func newRunner(session round.Session, log zerolog.Logger, now time.Time, stageTimeout time.Duration) *runner {
	return &runner{
		session:  session,
		outcome:  make(chan Outcome, 1),
		log:      log,
		received: make(map[party.ID]bool),
		faulted:  make(map[party.ID]bool),
		future:   make(map[round.Number]map[party.ID]*ceremonyMessage),
		started:  now,
		deadline: now.Add(stageTimeout),
	}
}

// expected is the number of messages the current round still waits for.
func (r *runner) expected() int {
	return r.session.N() - 1 - len(r.received)
}

// deliver routes one decoded message to the current round, or queues it.
// It returns true when the runner reached a terminal state.
func (r *runner) deliver(m *Manager, from party.ID, msg *ceremonyMessage) bool {
	if from == r.session.SelfID() || !r.session.PartyIDs().Contains(from) {
		m.drop("unknown_sender")
		return false
	}
	current := r.session.Number()
	switch {
	case msg.RoundNumber < current || msg.RoundNumber > r.session.FinalRoundNumber():
		m.drop("stale_round")
		return false
	case msg.RoundNumber > current:
		perSender, ok := r.future[msg.RoundNumber]
		if !ok {
			perSender = make(map[party.ID]*ceremonyMessage)
			r.future[msg.RoundNumber] = perSender
		}
		if _, dup := perSender[from]; dup {
			m.drop("duplicate")
			return false
		}
		perSender[from] = msg
		return false
	}
	if r.received[from] || r.faulted[from] {
		m.drop("duplicate")
		return false
	}

	if err := r.store(from, msg); err != nil {
		// Blamed at the stage deadline: other parties may time out on the
		// same sender, keeping the reported culprits consistent.
		r.faulted[from] = true
		m.drop("invalid_content")
		r.log.Warn().Str("from", string(from)).Err(err).Msg("rejected ceremony message")
		return false
	}
	r.received[from] = true
	if r.expected() > 0 {
		return false
	}
	return r.advance(m)
}

// store decodes the content into the current round's prototype, then
// verifies and stores it.
func (r *runner) store(from party.ID, msg *ceremonyMessage) error {
	content := r.session.MessageContent()
	if content == nil {
		return fmt.Errorf("ceremony: round %d accepts no content", r.session.Number())
	}
	if err := cbor.Unmarshal(msg.Content, content); err != nil {
		return fmt.Errorf("ceremony: decode round %d content: %w", r.session.Number(), err)
	}
	if content.RoundNumber() != msg.RoundNumber {
		return fmt.Errorf("ceremony: content round mismatch")
	}
	delivered := round.Message{
		From:      from,
		To:        r.session.SelfID(),
		Broadcast: msg.Broadcast,
		Content:   content,
	}
	if err := r.session.VerifyMessage(delivered); err != nil {
		return err
	}
	return r.session.StoreMessage(delivered)
}

// advance finalizes rounds for as long as the session keeps making
// progress, sending outgoing messages and replaying queued future
// messages. It returns true when the runner reached a terminal state.
func (r *runner) advance(m *Manager) bool {
	for {
		out := make(chan *round.Message, 2*r.session.N())
		next, err := r.session.Finalize(out)
		close(out)
		if err != nil {
			// Local failure, not attributable to any remote party.
			r.fail(m, &Error{
				Code:        ErrCodeProtocolFault,
				CeremonyID:  r.session.CeremonyID(),
				RoundNumber: r.session.Number(),
				Culprits:    r.session.PartyIDs(),
				Reason:      err.Error(),
			})
			return true
		}
		for msg := range out {
			m.send(r.session, msg)
		}

		switch terminal := next.(type) {
		case *round.Output:
			r.succeed(m, terminal.Result)
			return true
		case *round.Abort:
			culprits := terminal.Culprits
			if culprits.Len() == 0 {
				culprits = r.session.PartyIDs()
			}
			r.fail(m, &Error{
				Code:        ErrCodeProtocolFault,
				CeremonyID:  r.session.CeremonyID(),
				RoundNumber: r.session.Number(),
				Culprits:    culprits,
				Reason:      terminal.Err.Error(),
			})
			return true
		}

		r.session = next
		r.received = make(map[party.ID]bool)
		r.faulted = make(map[party.ID]bool)
		r.deadline = m.now().Add(m.opts.StageTimeout)

		current := r.session.Number()
		queued := r.future[current]
		delete(r.future, current)
		for from, msg := range queued {
			if err := r.store(from, msg); err != nil {
				r.faulted[from] = true
				r.log.Warn().Str("from", string(from)).Err(err).Msg("rejected queued ceremony message")
				continue
			}
			r.received[from] = true
		}
		if r.expected() > 0 {
			return false
		}
	}
}

// timedOut reports the ceremony as failed, blaming every party that did
// not deliver a valid message for the current round.
func (r *runner) timedOut(m *Manager) {
	var culprits []party.ID
	for _, id := range r.session.OtherPartyIDs() {
		if !r.received[id] {
			culprits = append(culprits, id)
		}
	}
	r.fail(m, &Error{
		Code:        ErrCodeTimeout,
		CeremonyID:  r.session.CeremonyID(),
		RoundNumber: r.session.Number(),
		Culprits:    party.NewIDSlice(culprits),
		Reason:      fmt.Sprintf("round %d stage timed out", r.session.Number()),
	})
}

func (r *runner) succeed(m *Manager, result interface{}) {
	r.outcome <- Outcome{CeremonyID: r.session.CeremonyID(), Result: result}
	m.finish(r, "success")
}

func (r *runner) fail(m *Manager, failure *Error) {
	r.log.Warn().
		Uint64("ceremony_id", failure.CeremonyID).
		Str("code", string(failure.Code)).
		Str("reason", failure.Reason).
		Msg("ceremony failed")
	r.outcome <- Outcome{CeremonyID: r.session.CeremonyID(), Failure: failure}
	m.finish(r, string(failure.Code))
}
