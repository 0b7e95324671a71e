package party

import (
	"io"

	"github.com/cronokirby/saferith"

	"github.com/fluxline/multisig/pkg/math/curve"
)

// ID is the unique identifier of a protocol participant, i.e. the account id
// of a validator node. IDs are compared and sorted as byte strings.
type ID string

// Scalar returns this party's Shamir x-coordinate in the given group.
//
// The coordinate is derived from the id bytes directly, so any subset of
// signers agrees on the interpolation domain without knowing the original
// participant ordering.
func (id ID) Scalar(group curve.Curve) curve.Scalar {
	return group.NewScalar().SetNat(new(saferith.Nat).SetBytes([]byte(id)))
}

// WriteTo implements io.WriterTo interface.
func (id ID) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write([]byte(id))
	return int64(n), err
}

// Domain implements hash.WriterToWithDomain.
func (ID) Domain() string {
	return "Party ID"
}
