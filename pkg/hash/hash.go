package hash

import (
	"encoding"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// DigestLengthBytes is the length of a full hash output.
const DigestLengthBytes = 64

// Hash is the hash function used for transcript hashing, binding factors
// and challenge derivation.
//
// Internally, this is a wrapper around blake3, but any hash function with
// an easily extendable output would work as well.
type Hash struct {
	h *blake3.Hasher
}

// New creates a Hash struct, initialized with the given data.
func New(initialData ...WriterToWithDomain) *Hash {
	hash := &Hash{h: blake3.New()}
	for _, d := range initialData {
		_ = hash.WriteAny(d)
	}
	return hash
}

// Digest returns a reader for the current output of the function.
//
// This finalizes the current state of the hash, and returns what's
// essentially a stream of random bytes.
func (hash *Hash) Digest() io.Reader {
	return hash.h.Digest()
}

// Sum returns a slice of length DigestLengthBytes resulting from the current
// hash state. If a different length is required, use
// io.ReadFull(hash.Digest(), out) instead.
func (hash *Hash) Sum() []byte {
	out := make([]byte, DigestLengthBytes)
	if _, err := io.ReadFull(hash.Digest(), out); err != nil {
		panic(fmt.Sprintf("hash.Sum: internal hash failure: %v", err))
	}
	return out
}

// WriteAny takes many different data types and writes them to the hash state.
//
// Currently supported types:
//
//   - []byte
//   - uint16, uint32, uint64
//   - encoding.BinaryMarshaler
//   - hash.WriterToWithDomain
//
// This function applies its own domain separation for the first three kinds.
// The last kind already suggests which domain to use, and this function
// respects it.
func (hash *Hash) WriteAny(data ...interface{}) error {
	for _, d := range data {
		var err error
		switch t := d.(type) {
		case []byte:
			err = writeWithDomain(hash.h, BytesWithDomain{
				TheDomain: "[]byte",
				Bytes:     t,
			})
		case uint16:
			var buf [2]byte
			binary.BigEndian.PutUint16(buf[:], t)
			err = writeWithDomain(hash.h, BytesWithDomain{
				TheDomain: "uint16",
				Bytes:     buf[:],
			})
		case uint32:
			var buf [4]byte
			binary.BigEndian.PutUint32(buf[:], t)
			err = writeWithDomain(hash.h, BytesWithDomain{
				TheDomain: "uint32",
				Bytes:     buf[:],
			})
		case uint64:
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], t)
			err = writeWithDomain(hash.h, BytesWithDomain{
				TheDomain: "uint64",
				Bytes:     buf[:],
			})
		case WriterToWithDomain:
			err = writeWithDomain(hash.h, t)
		case encoding.BinaryMarshaler:
			var bytes []byte
			bytes, err = t.MarshalBinary()
			if err == nil {
				err = writeWithDomain(hash.h, BytesWithDomain{
					TheDomain: "BinaryMarshaler",
					Bytes:     bytes,
				})
			}
		default:
			panic(fmt.Sprintf("hash.Hash: unsupported type %T", d))
		}
		if err != nil {
			return fmt.Errorf("hash.Hash: write %T: %w", d, err)
		}
	}
	return nil
}

// Clone returns a copy of the Hash in its current state.
func (hash *Hash) Clone() *Hash {
	return &Hash{h: hash.h.Clone()}
}
