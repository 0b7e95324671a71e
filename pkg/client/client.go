// Package client is the node-facing surface of the ceremony engine: it
// starts ceremonies through the manager, waits for their outcomes, and
// guarantees a fresh key share is on disk before a keygen is reported
// successful.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/fluxline/multisig/internal/round"
	"github.com/fluxline/multisig/pkg/ceremony"
	"github.com/fluxline/multisig/pkg/keystore"
	"github.com/fluxline/multisig/pkg/party"
	"github.com/fluxline/multisig/pkg/scheme"
	"github.com/fluxline/multisig/protocols/keygen"
	"github.com/fluxline/multisig/protocols/signing"
	"github.com/rs/zerolog"
)

// Client runs ceremonies on behalf of one node.
type Client struct {
	selfID  party.ID
	manager *ceremony.Manager
	store   *keystore.Store
	log     zerolog.Logger

	mtx sync.Mutex
	// keys caches the persisted key shares by KeyID string.
	keys map[string]*keygen.Result
}

// New builds a client and loads the persisted key shares.
func New(selfID party.ID, manager *ceremony.Manager, store *keystore.Store, log zerolog.Logger) (*Client, error) {
	stored, err := store.LoadKeys()
	if err != nil {
		return nil, fmt.Errorf("client: load keys: %w", err)
	}
	keys := make(map[string]*keygen.Result, len(stored))
	for _, entry := range stored {
		keys[entry.ID.String()] = entry.Key
	}
	return &Client{
		selfID:  selfID,
		manager: manager,
		store:   store,
		log:     log.With().Str("component", "multisig-client").Logger(),
		keys:    keys,
	}, nil
}

// KeygenRequest describes one keygen ceremony.
type KeygenRequest struct {
	Scheme     scheme.Scheme
	CeremonyID uint64
	// Epoch the generated key belongs to, part of its identifier.
	Epoch        uint32
	Participants []party.ID
	Threshold    int
	// VerifyKey signs a test payload with the fresh key before release.
	VerifyKey bool
}

// Keygen runs a keygen ceremony to completion. The key share is persisted
// before the id is returned: a success reported here survives a crash.
func (c *Client) Keygen(ctx context.Context, req KeygenRequest) (keystore.KeyID, error) {
	session, err := keygen.Start(keygen.Config{
		Scheme:       req.Scheme,
		CeremonyID:   req.CeremonyID,
		SelfID:       c.selfID,
		Participants: req.Participants,
		Threshold:    req.Threshold,
		VerifyKey:    req.VerifyKey,
	})
	if err != nil {
		return keystore.KeyID{}, err
	}
	result, err := c.await(ctx, session)
	if err != nil {
		return keystore.KeyID{}, err
	}
	key, ok := result.(*keygen.Result)
	if !ok {
		return keystore.KeyID{}, fmt.Errorf("client: unexpected keygen result type %T", result)
	}

	id := keystore.KeyID{Epoch: req.Epoch, PublicKey: key.PubKeyBytes()}
	if err := c.store.UpdateKey(id, key); err != nil {
		return keystore.KeyID{}, err
	}
	c.mtx.Lock()
	c.keys[id.String()] = key
	c.mtx.Unlock()
	c.log.Info().Str("key_id", id.String()).Uint64("ceremony_id", req.CeremonyID).Msg("keygen ceremony succeeded")
	return id, nil
}

// SignRequest describes one signing ceremony.
type SignRequest struct {
	KeyID      keystore.KeyID
	CeremonyID uint64
	Signers    []party.ID
	Payloads   [][]byte
}

// Sign signs the payloads with a persisted key, returning one signature
// per payload.
func (c *Client) Sign(ctx context.Context, req SignRequest) ([][]byte, error) {
	c.mtx.Lock()
	key, ok := c.keys[req.KeyID.String()]
	c.mtx.Unlock()
	if !ok {
		return nil, fmt.Errorf("client: no share for key %s", req.KeyID)
	}

	session, err := signing.Start(signing.Config{
		Key:        key,
		CeremonyID: req.CeremonyID,
		SelfID:     c.selfID,
		Signers:    req.Signers,
		Payloads:   req.Payloads,
	})
	if err != nil {
		return nil, err
	}
	result, err := c.await(ctx, session)
	if err != nil {
		return nil, err
	}
	signatures, ok := result.([][]byte)
	if !ok {
		return nil, fmt.Errorf("client: unexpected signing result type %T", result)
	}
	return signatures, nil
}

// PruneEpochsBefore drops shares of keys retired before epoch, from disk
// and from the cache.
func (c *Client) PruneEpochsBefore(epoch uint32) error {
	if err := c.store.PruneEpochsBefore(epoch); err != nil {
		return err
	}
	stored, err := c.store.LoadKeys()
	if err != nil {
		return err
	}
	keys := make(map[string]*keygen.Result, len(stored))
	for _, entry := range stored {
		keys[entry.ID.String()] = entry.Key
	}
	c.mtx.Lock()
	for id, key := range c.keys {
		if _, kept := keys[id]; !kept {
			key.Wipe()
		}
	}
	c.keys = keys
	c.mtx.Unlock()
	return nil
}

// await starts the ceremony and blocks until its outcome.
func (c *Client) await(ctx context.Context, session round.Session) (interface{}, error) {
	outcomes, err := c.manager.Start(ctx, session)
	if err != nil {
		return nil, err
	}
	select {
	case outcome := <-outcomes:
		if outcome.Failure != nil {
			return nil, outcome.Failure
		}
		return outcome.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
