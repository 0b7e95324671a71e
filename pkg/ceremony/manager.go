// Package ceremony runs multisig ceremonies to completion: it routes
// incoming wire messages to the right ceremony, buffers messages that
// arrive before their ceremony starts, enforces stage deadlines, and
// reports every outcome with a consistent blame set.
package ceremony

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/metrics"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/rs/zerolog"
)

const (
	// DefaultStageTimeout bounds how long one round waits for the slowest
	// party.
	DefaultStageTimeout = 30 * time.Second
	// DefaultCeremonyIDWindow is how far ahead of the latest started
	// ceremony a message may be buffered.
	DefaultCeremonyIDWindow uint64 = 6000
	// DefaultMaxDelayedPerSender caps the buffered messages per sender and
	// pending ceremony.
	DefaultMaxDelayedPerSender = 8
	// DefaultQueueSize is the incoming message queue capacity.
	DefaultQueueSize = 1024
)

// Options tune the manager. The zero value uses the defaults above.
type Options struct {
	StageTimeout        time.Duration
	CeremonyIDWindow    uint64
	MaxDelayedPerSender int
	QueueSize           int
}

func (o *Options) applyDefaults() {
	if o.StageTimeout <= 0 {
		o.StageTimeout = DefaultStageTimeout
	}
	if o.CeremonyIDWindow == 0 {
		o.CeremonyIDWindow = DefaultCeremonyIDWindow
	}
	if o.MaxDelayedPerSender <= 0 {
		o.MaxDelayedPerSender = DefaultMaxDelayedPerSender
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
}

// Outgoing is one wire envelope to deliver to a set of peers. The
// transport must keep draining the outgoing channel or the manager stalls.
type Outgoing struct {
	Recipients party.IDSlice
	Data       []byte
}

type incoming struct {
	from party.ID
	data []byte
}

type startRequest struct {
	session round.Session
	outcome chan (<-chan Outcome)
	err     chan error
}

type delayedMessage struct {
	from party.ID
	msg  *ceremonyMessage
}

// Manager owns every running ceremony. All state is confined to the Run
// goroutine; Deliver and Start communicate with it through channels.
type Manager struct {
	selfID   party.ID
	outgoing chan<- Outgoing
	requests chan startRequest
	queue    chan incoming
	log      zerolog.Logger
	metrics  *metrics.Metrics
	opts     Options

	ceremonies map[uint64]*runner
	// delayed buffers messages for ceremonies that have not started here
	// yet, a normal condition when peers run slightly ahead.
	delayed map[uint64][]delayedMessage
	// finished remembers completed ceremony ids until they fall out of the
	// id window, to reject replays.
	finished map[uint64]bool
	// latest is the highest ceremony id started or buffered for.
	latest uint64
}

// Config wires a Manager to its node.
type Config struct {
	// SelfID is this node.
	SelfID party.ID
	// Outgoing receives every wire envelope to send.
	Outgoing chan<- Outgoing
	// Logger, typically scoped with the node id.
	Logger zerolog.Logger
	// Metrics may be nil.
	Metrics *metrics.Metrics
	Options Options
}

// NewManager returns a manager; Run must be called to process anything.
func NewManager(config Config) *Manager {
	opts := config.Options
	opts.applyDefaults()
	m := &Manager{
		selfID:     config.SelfID,
		outgoing:   config.Outgoing,
		requests:   make(chan startRequest),
		queue:      make(chan incoming, opts.QueueSize),
		log:        config.Logger.With().Str("component", "ceremony-manager").Logger(),
		metrics:    config.Metrics,
		opts:       opts,
		ceremonies: make(map[uint64]*runner),
		delayed:    make(map[uint64][]delayedMessage),
		finished:   make(map[uint64]bool),
	}
	return m
}

// Run processes messages and requests until ctx is cancelled. Every
// pending ceremony then fails with ErrCodeShutdown.
func (m *Manager) Run(ctx context.Context) error {
	tick := m.opts.StageTimeout / 8
	if tick < time.Millisecond {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, r := range m.ceremonies {
				r.fail(m, &Error{
					Code:        ErrCodeShutdown,
					CeremonyID:  r.session.CeremonyID(),
					RoundNumber: r.session.Number(),
					Reason:      "manager stopped",
				})
			}
			return ctx.Err()
		case req := <-m.requests:
			m.handleStart(req)
		case in := <-m.queue:
			m.handleIncoming(in)
		case now := <-ticker.C:
			m.checkDeadlines(now)
		}
	}
}

// Start registers a new ceremony from its first round and returns the
// channel its outcome will be delivered on. It fails when a ceremony with
// the same id is already running or has completed recently.
func (m *Manager) Start(ctx context.Context, session round.Session) (<-chan Outcome, error) {
	req := startRequest{
		session: session,
		outcome: make(chan (<-chan Outcome), 1),
		err:     make(chan error, 1),
	}
	select {
	case m.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case outcome := <-req.outcome:
		return outcome, nil
	case err := <-req.err:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Deliver hands one received wire envelope to the manager. It never
// blocks: when the queue is full the message is dropped, to be recovered
// by the sender's retransmission or the ceremony's timeout.
func (m *Manager) Deliver(from party.ID, data []byte) {
	select {
	case m.queue <- incoming{from: from, data: data}:
	default:
		m.drop("queue_full")
	}
}

func (m *Manager) handleStart(req startRequest) {
	id := req.session.CeremonyID()
	if _, running := m.ceremonies[id]; running || m.finished[id] {
		req.err <- fmt.Errorf("ceremony: id %d already used", id)
		return
	}
	if id > m.latest {
		m.latest = id
	}

	r := newRunner(req.session, m.log.With().Uint64("ceremony_id", id).Logger(), m.now(), m.opts.StageTimeout)
	m.ceremonies[id] = r
	if m.metrics != nil {
		m.metrics.CeremoniesStarted.WithLabelValues(req.session.ProtocolID()).Inc()
		m.metrics.PendingCeremonies.Inc()
	}
	r.log.Info().Str("protocol", req.session.ProtocolID()).Msg("ceremony started")
	req.outcome <- r.outcome

	// The first round sends without receiving.
	if r.advance(m) {
		return
	}
	buffered := m.delayed[id]
	delete(m.delayed, id)
	if m.metrics != nil {
		m.metrics.DelayedMessages.Sub(float64(len(buffered)))
	}
	for _, delayed := range buffered {
		if r.deliver(m, delayed.from, delayed.msg) {
			return
		}
	}
}

func (m *Manager) handleIncoming(in incoming) {
	msg, err := decodeMessage(in.data)
	if err != nil {
		reason := "undecodable"
		if errors.Is(err, errVersionMismatch) {
			reason = "version_mismatch"
		}
		m.drop(reason)
		m.log.Warn().Str("from", string(in.from)).Err(err).Msg("dropped ceremony message")
		return
	}

	if r, ok := m.ceremonies[msg.CeremonyID]; ok {
		r.deliver(m, in.from, msg)
		return
	}
	m.buffer(in.from, msg)
}

// buffer holds a message for a ceremony this node has not started yet.
func (m *Manager) buffer(from party.ID, msg *ceremonyMessage) {
	id := msg.CeremonyID
	if m.finished[id] {
		m.drop("finished_ceremony")
		return
	}
	if m.latest > 0 && id > m.latest && id-m.latest > m.opts.CeremonyIDWindow {
		m.drop("ceremony_id_out_of_range")
		return
	}
	if m.latest > 0 && id < m.latest && m.latest-id > m.opts.CeremonyIDWindow {
		m.drop("ceremony_id_out_of_range")
		return
	}

	perSender := 0
	for _, delayed := range m.delayed[id] {
		if delayed.from == from {
			perSender++
		}
	}
	if perSender >= m.opts.MaxDelayedPerSender {
		m.drop("delayed_cap")
		return
	}
	m.delayed[id] = append(m.delayed[id], delayedMessage{from: from, msg: msg})
	if m.metrics != nil {
		m.metrics.DelayedMessages.Inc()
	}
}

func (m *Manager) checkDeadlines(now time.Time) {
	for _, r := range m.ceremonies {
		if now.After(r.deadline) {
			r.timedOut(m)
		}
	}
	// Expire delayed buffers and finished markers that fell out of the id
	// window.
	for id, buffered := range m.delayed {
		if m.latest > id && m.latest-id > m.opts.CeremonyIDWindow {
			delete(m.delayed, id)
			if m.metrics != nil {
				m.metrics.DelayedMessages.Sub(float64(len(buffered)))
			}
		}
	}
	for id := range m.finished {
		if m.latest > id && m.latest-id > m.opts.CeremonyIDWindow {
			delete(m.finished, id)
		}
	}
}

// send encodes and dispatches one outgoing round message.
func (m *Manager) send(session round.Session, msg *round.Message) {
	data, err := EncodeMessage(session.CeremonyID(), msg)
	if err != nil {
		m.log.Error().Err(err).Msg("failed to encode outgoing message")
		return
	}
	recipients := party.IDSlice{msg.To}
	if msg.Broadcast {
		recipients = session.OtherPartyIDs()
	}
	m.outgoing <- Outgoing{Recipients: recipients, Data: data}
}

// finish removes a terminal runner and updates the gauges.
func (m *Manager) finish(r *runner, outcome string) {
	id := r.session.CeremonyID()
	delete(m.ceremonies, id)
	m.finished[id] = true
	if m.metrics != nil {
		m.metrics.PendingCeremonies.Dec()
		m.metrics.CeremonyOutcomes.WithLabelValues(r.session.ProtocolID(), outcome).Inc()
		m.metrics.CeremonyDuration.WithLabelValues(r.session.ProtocolID()).Observe(m.now().Sub(r.started).Seconds())
	}
}

func (m *Manager) drop(reason string) {
	if m.metrics != nil {
		m.metrics.DroppedMessages.WithLabelValues(reason).Inc()
	}
}

func (m *Manager) now() time.Time { return time.Now() }
