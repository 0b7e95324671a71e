package signing

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/internal/test"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/fluxline/multisig/pkg/scheme"
	"github.com/fluxline/multisig/protocols/keygen"
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

// generateKey runs a keygen ceremony in-process and returns every party's
// share of one key. A ceremony whose aggregate key the scheme rejects
// (unattributable, everyone reported) is simply rerun, the way a caller
// would react to that outcome.
func generateKey(t *testing.T, s scheme.Scheme, n, threshold int) map[party.ID]*keygen.Result {
	t.Helper()
	ids := newPartyIDs(n)
	for attempt := 0; attempt < 32; attempt++ {
		sessions := make([]round.Session, 0, n)
		for _, id := range ids {
			r, err := keygen.Start(keygen.Config{
				Scheme:       s,
				CeremonyID:   1,
				SelfID:       id,
				Participants: ids,
				Threshold:    threshold,
				Rand:         rand.Reader,
			})
			require.NoError(t, err)
			sessions = append(sessions, r)
		}
		require.NoError(t, test.Rounds(sessions, nil))
		outputs, aborts := test.Results(sessions)
		if len(aborts) > 0 {
			require.Len(t, aborts, n)
			for _, abort := range aborts {
				require.Equal(t, ids, abort.Culprits, "only unattributable aborts may be retried")
			}
			continue
		}

		keys := make(map[party.ID]*keygen.Result, n)
		for _, out := range outputs {
			keys[out.SelfID()] = out.Result.(*keygen.Result)
		}
		return keys
	}
	t.Fatal("keygen kept producing unusable keys")
	return nil
}

func startSigning(t *testing.T, keys map[party.ID]*keygen.Result, signers party.IDSlice, payloads [][]byte) []round.Session {
	t.Helper()
	sessions := make([]round.Session, 0, signers.Len())
	for _, id := range signers {
		r, err := Start(Config{
			Key:        keys[id],
			CeremonyID: 2,
			SelfID:     id,
			Signers:    signers,
			Payloads:   payloads,
			Rand:       rand.Reader,
		})
		require.NoError(t, err)
		sessions = append(sessions, r)
	}
	return sessions
}

func checkSignatures(t *testing.T, key *keygen.Result, outputs []*round.Output, payloads [][]byte) {
	t.Helper()
	first := outputs[0].Result.([][]byte)
	require.Len(t, first, len(payloads))
	for k, payload := range payloads {
		assert.NoError(t, key.Scheme.VerifySignature(first[k], key.PublicKey, payload))
	}
	for _, out := range outputs[1:] {
		assert.Equal(t, first, out.Result.([][]byte), "signers disagree on the signatures")
	}
}

// Signing runs with a strict subset of the share holders: any threshold+1
// of them suffice.
func TestSignAllSchemes(t *testing.T) {
	n, threshold := 4, 1
	for _, s := range scheme.All() {
		s := s
		t.Run(s.Name(), func(t *testing.T) {
			keys := generateKey(t, s, n, threshold)
			ids := newPartyIDs(n)
			signers := party.NewIDSlice([]party.ID{ids[0], ids[2]})
			payloads := [][]byte{s.SigningPayloadForTest()}

			sessions := startSigning(t, keys, signers, payloads)
			require.NoError(t, test.Rounds(sessions, nil))
			outputs, aborts := test.Results(sessions)
			require.Empty(t, aborts)
			require.Len(t, outputs, signers.Len())
			checkSignatures(t, keys[ids[0]], outputs, payloads)
		})
	}
}

func TestSignBitcoinBatch(t *testing.T) {
	n, threshold := 3, 1
	keys := generateKey(t, scheme.Bitcoin{}, n, threshold)
	signers := newPartyIDs(n)

	payloads := make([][]byte, 5)
	for i := range payloads {
		payloads[i] = make([]byte, 32)
		payloads[i][0] = byte(i + 1)
	}

	sessions := startSigning(t, keys, signers, payloads)
	require.NoError(t, test.Rounds(sessions, nil))
	outputs, aborts := test.Results(sessions)
	require.Empty(t, aborts)
	require.Len(t, outputs, n)
	checkSignatures(t, keys[signers[0]], outputs, payloads)
}

func TestSignConfigValidation(t *testing.T) {
	n, threshold := 3, 1
	keys := generateKey(t, scheme.Ethereum{}, n, threshold)
	ids := newPartyIDs(n)
	key := keys[ids[0]]
	payload := scheme.Ethereum{}.SigningPayloadForTest()

	t.Run("too few signers", func(t *testing.T) {
		_, err := Start(Config{
			Key:      key,
			SelfID:   ids[0],
			Signers:  []party.ID{ids[0]},
			Payloads: [][]byte{payload},
		})
		require.Error(t, err)
	})

	t.Run("unknown signer", func(t *testing.T) {
		_, err := Start(Config{
			Key:      key,
			SelfID:   ids[0],
			Signers:  []party.ID{ids[0], "stranger"},
			Payloads: [][]byte{payload},
		})
		require.Error(t, err)
	})

	t.Run("invalid payload", func(t *testing.T) {
		_, err := Start(Config{
			Key:      key,
			SelfID:   ids[0],
			Signers:  ids,
			Payloads: [][]byte{[]byte("not a hash")},
		})
		require.Error(t, err)
	})

	t.Run("too many payloads", func(t *testing.T) {
		_, err := Start(Config{
			Key:      key,
			SelfID:   ids[0],
			Signers:  ids,
			Payloads: [][]byte{payload, payload},
		})
		require.Error(t, err)
	})

	t.Run("no payloads", func(t *testing.T) {
		_, err := Start(Config{
			Key:     key,
			SelfID:  ids[0],
			Signers: ids,
		})
		require.Error(t, err)
	})
}

// doubledShare makes the culprit broadcast a corrupted signature share for
// the first payload.
type doubledShare struct {
	culprit party.ID
}

func (doubledShare) ModifyBefore(round.Session) {}
func (doubledShare) ModifyAfter(round.Session)  {}
func (rule doubledShare) ModifyContent(r round.Session, _ party.ID, content round.Content) {
	body, ok := content.(*broadcast4)
	if !ok || len(body.Shares) == 0 {
		return
	}
	share := r.Group().NewScalar()
	if err := share.UnmarshalBinary(body.Shares[0]); err != nil {
		return
	}
	share.Add(share)
	doubled, err := share.MarshalBinary()
	if err != nil {
		return
	}
	body.Shares[0] = doubled
}
func (rule doubledShare) Culprit() party.ID { return rule.culprit }

func TestSignBlamesBadShare(t *testing.T) {
	n, threshold := 4, 1
	keys := generateKey(t, scheme.Polkadot{}, n, threshold)
	ids := newPartyIDs(n)
	signers := party.NewIDSlice([]party.ID{ids[0], ids[1], ids[3]})
	rule := doubledShare{culprit: ids[1]}

	sessions := startSigning(t, keys, signers, [][]byte{scheme.Polkadot{}.SigningPayloadForTest()})
	require.NoError(t, test.Rounds(sessions, rule))
	outputs, aborts := test.Results(sessions)
	require.Empty(t, outputs, "no signer may finish with a signature")
	require.Len(t, aborts, signers.Len())
	for _, abort := range aborts {
		assert.Equal(t, party.NewIDSlice([]party.ID{rule.culprit}), abort.Culprits,
			"signer %s blamed the wrong set", abort.SelfID())
	}
}
