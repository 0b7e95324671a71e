package ceremony

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fluxline/multisig/pkg/metrics"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/fluxline/multisig/pkg/scheme"
	"github.com/fluxline/multisig/protocols/keygen"
	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPartyIDs(n int) party.IDSlice {
	ids := make([]party.ID, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, party.ID(fmt.Sprintf("node-%d", i)))
	}
	return party.NewIDSlice(ids)
}

// network wires managers together in-process. Every outgoing envelope is
// routed straight into the recipients' queues.
type network struct {
	managers map[party.ID]*Manager
	metrics  map[party.ID]*metrics.Metrics
	cancel   context.CancelFunc
}

// newNetwork starts one manager per id. duplicate, when set, delivers every
// message twice to exercise idempotency.
func newNetwork(t *testing.T, ids party.IDSlice, opts Options, duplicate bool) *network {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	n := &network{
		managers: make(map[party.ID]*Manager, ids.Len()),
		metrics:  make(map[party.ID]*metrics.Metrics, ids.Len()),
		cancel:   cancel,
	}
	t.Cleanup(cancel)

	outgoing := make(map[party.ID]chan Outgoing, ids.Len())
	for _, id := range ids {
		out := make(chan Outgoing, 1024)
		m := metrics.New(prometheus.NewRegistry())
		n.managers[id] = NewManager(Config{
			SelfID:   id,
			Outgoing: out,
			Logger:   zerolog.Nop(),
			Metrics:  m,
			Options:  opts,
		})
		n.metrics[id] = m
		outgoing[id] = out
	}
	for _, id := range ids {
		id := id
		go func() { _ = n.managers[id].Run(ctx) }()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case env := <-outgoing[id]:
					for _, to := range env.Recipients {
						if peer, ok := n.managers[to]; ok {
							peer.Deliver(id, env.Data)
							if duplicate {
								peer.Deliver(id, env.Data)
							}
						}
					}
				}
			}
		}()
	}
	return n
}

func startKeygen(t *testing.T, n *network, s scheme.Scheme, ceremonyID uint64, self party.ID, participants party.IDSlice, threshold int) <-chan Outcome {
	t.Helper()
	session, err := keygen.Start(keygen.Config{
		Scheme:       s,
		CeremonyID:   ceremonyID,
		SelfID:       self,
		Participants: participants,
		Threshold:    threshold,
	})
	require.NoError(t, err)
	outcome, err := n.managers[self].Start(context.Background(), session)
	require.NoError(t, err)
	return outcome
}

func awaitOutcome(t *testing.T, outcomes []<-chan Outcome, within time.Duration) []Outcome {
	t.Helper()
	results := make([]Outcome, 0, len(outcomes))
	deadline := time.After(within)
	for _, ch := range outcomes {
		select {
		case outcome := <-ch:
			results = append(results, outcome)
		case <-deadline:
			t.Fatal("timed out waiting for ceremony outcome")
		}
	}
	return results
}

func TestManagerKeygenSucceeds(t *testing.T) {
	ids := newPartyIDs(3)
	n := newNetwork(t, ids, Options{}, false)

	outcomes := make([]<-chan Outcome, 0, ids.Len())
	for _, id := range ids {
		outcomes = append(outcomes, startKeygen(t, n, scheme.Ristretto{}, 10, id, ids, 1))
	}
	for _, outcome := range awaitOutcome(t, outcomes, 30*time.Second) {
		require.Nil(t, outcome.Failure)
		result, ok := outcome.Result.(*keygen.Result)
		require.True(t, ok)
		assert.NotNil(t, result.PublicKey)
	}
}

func TestManagerToleratesDuplicateDelivery(t *testing.T) {
	ids := newPartyIDs(3)
	n := newNetwork(t, ids, Options{}, true)

	outcomes := make([]<-chan Outcome, 0, ids.Len())
	for _, id := range ids {
		outcomes = append(outcomes, startKeygen(t, n, scheme.Polkadot{}, 11, id, ids, 1))
	}
	for _, outcome := range awaitOutcome(t, outcomes, 30*time.Second) {
		require.Nil(t, outcome.Failure)
	}
}

// A party that never shows up is blamed by everyone who did.
func TestManagerTimesOutOnSilentParty(t *testing.T) {
	ids := newPartyIDs(3)
	active := party.NewIDSlice([]party.ID{ids[0], ids[1]})
	silent := ids[2]

	n := newNetwork(t, active, Options{StageTimeout: 300 * time.Millisecond}, false)
	outcomes := make([]<-chan Outcome, 0, active.Len())
	for _, id := range active {
		outcomes = append(outcomes, startKeygen(t, n, scheme.Ristretto{}, 12, id, ids, 1))
	}
	for _, outcome := range awaitOutcome(t, outcomes, 30*time.Second) {
		require.NotNil(t, outcome.Failure)
		assert.Equal(t, ErrCodeTimeout, outcome.Failure.Code)
		assert.Equal(t, party.NewIDSlice([]party.ID{silent}), outcome.Failure.Culprits)
	}
}

// Messages arriving before their ceremony starts are buffered and replayed.
func TestManagerBuffersEarlyMessages(t *testing.T) {
	ids := newPartyIDs(3)
	n := newNetwork(t, ids, Options{}, false)

	late := ids[0]
	outcomes := make([]<-chan Outcome, 0, ids.Len())
	for _, id := range ids {
		if id == late {
			continue
		}
		outcomes = append(outcomes, startKeygen(t, n, scheme.Ristretto{}, 13, id, ids, 1))
	}
	// Let the early starters' round messages arrive first.
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(n.metrics[late].DelayedMessages) >= 2
	}, 10*time.Second, 5*time.Millisecond)

	outcomes = append(outcomes, startKeygen(t, n, scheme.Ristretto{}, 13, late, ids, 1))
	for _, outcome := range awaitOutcome(t, outcomes, 30*time.Second) {
		require.Nil(t, outcome.Failure)
	}
}

func TestManagerRejectsDuplicateCeremonyID(t *testing.T) {
	self := party.ID("solo")
	ids := party.NewIDSlice([]party.ID{self})
	n := newNetwork(t, ids, Options{}, false)

	outcome := startKeygen(t, n, scheme.Ristretto{}, 14, self, ids, 0)
	awaitOutcome(t, []<-chan Outcome{outcome}, 30*time.Second)

	session, err := keygen.Start(keygen.Config{
		Scheme:       scheme.Ristretto{},
		CeremonyID:   14,
		SelfID:       self,
		Participants: ids,
		Threshold:    0,
	})
	require.NoError(t, err)
	_, err = n.managers[self].Start(context.Background(), session)
	require.Error(t, err)
}

func encodeRaw(t *testing.T, version uint16, msg ceremonyMessage) []byte {
	t.Helper()
	payload, err := cbor.Marshal(msg)
	require.NoError(t, err)
	data, err := cbor.Marshal(VersionedCeremonyMessage{Version: version, Payload: payload})
	require.NoError(t, err)
	return data
}

func TestManagerDropsVersionMismatch(t *testing.T) {
	ids := newPartyIDs(2)
	n := newNetwork(t, ids, Options{}, false)

	data := encodeRaw(t, CurrentProtocolVersion+1, ceremonyMessage{CeremonyID: 20, RoundNumber: 2, Content: []byte{0x01}})
	n.managers[ids[0]].Deliver(ids[1], data)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(n.metrics[ids[0]].DroppedMessages.WithLabelValues("version_mismatch")) == 1
	}, 10*time.Second, 5*time.Millisecond)
}

func TestManagerCapsDelayedMessagesPerSender(t *testing.T) {
	ids := newPartyIDs(2)
	n := newNetwork(t, ids, Options{MaxDelayedPerSender: 2}, false)

	for i := 0; i < 5; i++ {
		data := encodeRaw(t, CurrentProtocolVersion, ceremonyMessage{CeremonyID: 30, RoundNumber: 2, Content: []byte{byte(i)}})
		n.managers[ids[0]].Deliver(ids[1], data)
	}
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(n.metrics[ids[0]].DroppedMessages.WithLabelValues("delayed_cap")) == 3
	}, 10*time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(2), testutil.ToFloat64(n.metrics[ids[0]].DelayedMessages))
}
