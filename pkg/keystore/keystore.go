// Package keystore persists generated key shares in a local badger
// database. A key share lost here is unrecoverable, so clients must not
// acknowledge a keygen ceremony before UpdateKey has returned.
package keystore

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/fluxline/multisig/protocols/keygen"
	"github.com/rs/zerolog"
)

// CurrentSchemaVersion is bumped on incompatible layout changes. Opening a
// database with a different version fails: migrations are a deliberate
// operator action, not something to attempt on the hot path.
const CurrentSchemaVersion uint32 = 1

// One-byte key prefixes.
const (
	prefixSchemaVersion byte = 'v'
	prefixKeyshare      byte = 'k'
)

// KeyID identifies one generated key: the epoch it was handed over in and
// the scheme encoding of its public key.
type KeyID struct {
	Epoch     uint32
	PublicKey []byte
}

func (k KeyID) String() string {
	return fmt.Sprintf("%d-%s", k.Epoch, hex.EncodeToString(k.PublicKey))
}

func (k KeyID) storageKey() []byte {
	key := make([]byte, 0, 5+len(k.PublicKey))
	key = append(key, prefixKeyshare)
	key = binary.BigEndian.AppendUint32(key, k.Epoch)
	return append(key, k.PublicKey...)
}

// StoredKey is one persisted key share with its identifier.
type StoredKey struct {
	ID  KeyID
	Key *keygen.Result
}

// Store wraps the badger database holding the key shares.
type Store struct {
	db  *badger.DB
	log zerolog.Logger
}

// Open opens or creates the database in dir.
func Open(dir string, log zerolog.Logger) (*Store, error) {
	return open(badger.DefaultOptions(dir), log)
}

// OpenInMemory opens a database that is lost on close, for tests.
func OpenInMemory(log zerolog.Logger) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), log)
}

func open(opts badger.Options, log zerolog.Logger) (*Store, error) {
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("keystore: open: %w", err)
	}
	s := &Store{db: db, log: log.With().Str("component", "keystore").Logger()}
	if err := s.checkSchemaVersion(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// checkSchemaVersion stamps a fresh database and refuses any other
// version.
func (s *Store) checkSchemaVersion() error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte{prefixSchemaVersion})
		if errors.Is(err, badger.ErrKeyNotFound) {
			var value [4]byte
			binary.BigEndian.PutUint32(value[:], CurrentSchemaVersion)
			return txn.Set([]byte{prefixSchemaVersion}, value[:])
		}
		if err != nil {
			return fmt.Errorf("keystore: read schema version: %w", err)
		}
		return item.Value(func(value []byte) error {
			if len(value) != 4 {
				return fmt.Errorf("keystore: malformed schema version")
			}
			if found := binary.BigEndian.Uint32(value); found != CurrentSchemaVersion {
				return fmt.Errorf("keystore: schema version %d, this build requires %d", found, CurrentSchemaVersion)
			}
			return nil
		})
	})
}

// UpdateKey durably persists one key share. It overwrites any share stored
// under the same id, which happens when a ceremony is re-run after an
// unreported success.
func (s *Store) UpdateKey(id KeyID, key *keygen.Result) error {
	data, err := key.MarshalBinary()
	if err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(id.storageKey(), data)
	})
	if err != nil {
		return fmt.Errorf("keystore: persist key %s: %w", id, err)
	}
	s.log.Info().Str("key_id", id.String()).Msg("key share persisted")
	return nil
}

// LoadKeys returns every persisted key share.
func (s *Store) LoadKeys() ([]StoredKey, error) {
	var keys []StoredKey
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{prefixKeyshare}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			storageKey := item.Key()
			if len(storageKey) < 5 {
				return fmt.Errorf("keystore: malformed storage key")
			}
			id := KeyID{
				Epoch:     binary.BigEndian.Uint32(storageKey[1:5]),
				PublicKey: append([]byte{}, storageKey[5:]...),
			}
			err := item.Value(func(value []byte) error {
				key, err := keygen.UnmarshalResult(value)
				if err != nil {
					return fmt.Errorf("keystore: key %s: %w", id, err)
				}
				keys = append(keys, StoredKey{ID: id, Key: key})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// PruneEpochsBefore deletes every key share from an epoch older than
// epoch. Keys from retired epochs no longer hold funds once the handover
// to the next epoch's key completed.
func (s *Store) PruneEpochsBefore(epoch uint32) error {
	var toDelete [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte{prefixKeyshare}
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			storageKey := it.Item().KeyCopy(nil)
			if len(storageKey) < 5 {
				continue
			}
			if binary.BigEndian.Uint32(storageKey[1:5]) < epoch {
				toDelete = append(toDelete, storageKey)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("keystore: prune: %w", err)
	}
	for _, storageKey := range toDelete {
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(storageKey)
		})
		if err != nil {
			return fmt.Errorf("keystore: prune: %w", err)
		}
	}
	if len(toDelete) > 0 {
		s.log.Info().Int("pruned", len(toDelete)).Uint32("before_epoch", epoch).Msg("pruned retired key shares")
	}
	return nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
