package client

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fluxline/multisig/pkg/ceremony"
	"github.com/fluxline/multisig/pkg/keystore"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/fluxline/multisig/pkg/scheme"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// node bundles one in-process participant.
type node struct {
	id     party.ID
	client *Client
	store  *keystore.Store
}

// startNodes wires n clients together over in-process channels.
func startNodes(t *testing.T, n int) []*node {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ids := make(party.IDSlice, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, party.ID(fmt.Sprintf("node-%d", i)))
	}
	ids = party.NewIDSlice(ids)

	managers := make(map[party.ID]*ceremony.Manager, n)
	outgoing := make(map[party.ID]chan ceremony.Outgoing, n)
	for _, id := range ids {
		out := make(chan ceremony.Outgoing, 1024)
		managers[id] = ceremony.NewManager(ceremony.Config{
			SelfID:   id,
			Outgoing: out,
			Logger:   zerolog.Nop(),
		})
		outgoing[id] = out
	}
	nodes := make([]*node, 0, n)
	for _, id := range ids {
		id := id
		go func() { _ = managers[id].Run(ctx) }()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case env := <-outgoing[id]:
					for _, to := range env.Recipients {
						if peer, ok := managers[to]; ok {
							peer.Deliver(id, env.Data)
						}
					}
				}
			}
		}()

		store, err := keystore.OpenInMemory(zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		c, err := New(id, managers[id], store, zerolog.Nop())
		require.NoError(t, err)
		nodes = append(nodes, &node{id: id, client: c, store: store})
	}
	return nodes
}

func TestClientKeygenThenSign(t *testing.T) {
	nodes := startNodes(t, 3)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ids := make([]party.ID, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.id)
	}

	// All nodes run the keygen ceremony concurrently.
	keyIDs := make([]keystore.KeyID, len(nodes))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, n := range nodes {
		i, n := i, n
		group.Go(func() error {
			id, err := n.client.Keygen(groupCtx, KeygenRequest{
				Scheme:       scheme.Bitcoin{},
				CeremonyID:   100,
				Epoch:        1,
				Participants: ids,
				Threshold:    1,
			})
			keyIDs[i] = id
			return err
		})
	}
	require.NoError(t, group.Wait())
	for _, id := range keyIDs[1:] {
		assert.Equal(t, keyIDs[0], id, "nodes disagree on the key id")
	}

	// The share must already be on disk.
	stored, err := nodes[0].store.LoadKeys()
	require.NoError(t, err)
	require.Len(t, stored, 1)

	// Any threshold+1 nodes can sign.
	signers := []party.ID{nodes[0].id, nodes[2].id}
	payload := scheme.Bitcoin{}.SigningPayloadForTest()
	signatures := make([][][]byte, 2)
	group, groupCtx = errgroup.WithContext(ctx)
	for i, n := range []*node{nodes[0], nodes[2]} {
		i, n := i, n
		group.Go(func() error {
			sigs, err := n.client.Sign(groupCtx, SignRequest{
				KeyID:      keyIDs[0],
				CeremonyID: 101,
				Signers:    signers,
				Payloads:   [][]byte{payload},
			})
			signatures[i] = sigs
			return err
		})
	}
	require.NoError(t, group.Wait())

	require.Len(t, signatures[0], 1)
	assert.Equal(t, signatures[0], signatures[1])

	key := stored[0].Key
	assert.NoError(t, scheme.Bitcoin{}.VerifySignature(signatures[0][0], key.PublicKey, payload))
}

func TestClientSignUnknownKey(t *testing.T) {
	nodes := startNodes(t, 1)
	_, err := nodes[0].client.Sign(context.Background(), SignRequest{
		KeyID:    keystore.KeyID{Epoch: 9, PublicKey: []byte{0x02}},
		Signers:  []party.ID{nodes[0].id},
		Payloads: [][]byte{scheme.Bitcoin{}.SigningPayloadForTest()},
	})
	require.Error(t, err)
}

func TestClientPruneWipesRetiredKeys(t *testing.T) {
	nodes := startNodes(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n := nodes[0]
	var keyIDs []keystore.KeyID
	for epoch := uint32(1); epoch <= 3; epoch++ {
		id, err := n.client.Keygen(ctx, KeygenRequest{
			Scheme:       scheme.Ristretto{},
			CeremonyID:   uint64(200 + epoch),
			Epoch:        epoch,
			Participants: []party.ID{n.id},
			Threshold:    0,
		})
		require.NoError(t, err)
		keyIDs = append(keyIDs, id)
	}

	require.NoError(t, n.client.PruneEpochsBefore(3))

	_, err := n.client.Sign(ctx, SignRequest{
		KeyID:      keyIDs[0],
		CeremonyID: 300,
		Signers:    []party.ID{n.id},
		Payloads:   [][]byte{scheme.Ristretto{}.SigningPayloadForTest()},
	})
	require.Error(t, err, "a pruned key must not sign")

	sigs, err := n.client.Sign(ctx, SignRequest{
		KeyID:      keyIDs[2],
		CeremonyID: 301,
		Signers:    []party.ID{n.id},
		Payloads:   [][]byte{scheme.Ristretto{}.SigningPayloadForTest()},
	})
	require.NoError(t, err)
	require.Len(t, sigs, 1)
}
