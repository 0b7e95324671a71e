// Demonstrates a full keygen and signing flow with four in-process nodes
// wired together over channels.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/fluxline/multisig/pkg/ceremony"
	"github.com/fluxline/multisig/pkg/client"
	"github.com/fluxline/multisig/pkg/keystore"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/fluxline/multisig/pkg/scheme"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type node struct {
	id     party.ID
	client *client.Client
}

// startNodes wires n nodes together: every outgoing envelope is delivered
// straight into the recipients' managers.
func startNodes(ctx context.Context, log zerolog.Logger, n int) ([]*node, error) {
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
			Logger:   log.With().Str("node", string(id)).Logger(),
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
						managers[to].Deliver(id, env.Data)
					}
				}
			}
		}()

		store, err := keystore.OpenInMemory(log)
		if err != nil {
			return nil, err
		}
		c, err := client.New(id, managers[id], store, log)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, &node{id: id, client: c})
	}
	return nodes, nil
}

func run() error {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	nodes, err := startNodes(ctx, log, 4)
	if err != nil {
		return err
	}
	ids := make([]party.ID, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.id)
	}

	s := scheme.Bitcoin{}
	threshold := 2

	// Keygen: all four nodes participate, any three may sign.
	keyIDs := make([]keystore.KeyID, len(nodes))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, n := range nodes {
		i, n := i, n
		group.Go(func() error {
			id, err := n.client.Keygen(groupCtx, client.KeygenRequest{
				Scheme:       s,
				CeremonyID:   1,
				Epoch:        1,
				Participants: ids,
				Threshold:    threshold,
				VerifyKey:    true,
			})
			keyIDs[i] = id
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return fmt.Errorf("keygen: %w", err)
	}
	log.Info().Str("public_key", hex.EncodeToString(keyIDs[0].PublicKey)).Msg("key generated")

	// Signing: a threshold+1 subset signs one payload.
	signers := []party.ID{nodes[0].id, nodes[1].id, nodes[3].id}
	payload := s.SigningPayloadForTest()
	var signature []byte
	group, groupCtx = errgroup.WithContext(ctx)
	for _, n := range []*node{nodes[0], nodes[1], nodes[3]} {
		n := n
		group.Go(func() error {
			sigs, err := n.client.Sign(groupCtx, client.SignRequest{
				KeyID:      keyIDs[0],
				CeremonyID: 2,
				Signers:    signers,
				Payloads:   [][]byte{payload},
			})
			if err == nil {
				signature = sigs[0]
			}
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return fmt.Errorf("signing: %w", err)
	}
	log.Info().Str("signature", hex.EncodeToString(signature)).Msg("payload signed")
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
