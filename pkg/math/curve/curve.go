package curve

import (
	"encoding"

	"github.com/cronokirby/saferith"
)

// Curve represents the starting point for working with an elliptic curve
// group. The expectation is that this interface will be implemented by an
// empty struct per supported curve, with the actual arithmetic living in
// the associated Scalar and Point types.
type Curve interface {
	// NewPoint creates an identity point.
	NewPoint() Point
	// NewBasePoint creates the generator of this group.
	NewBasePoint() Point
	// NewScalar creates a scalar with the value of 0.
	NewScalar() Scalar
	// Name returns the name of this curve. The expectation is that this name
	// is byte-stable: it is used for scheme routing and storage keys.
	Name() string
	// SafeScalarBytes returns the number of random bytes needed to sample
	// a scalar through modular reduction with negligible bias.
	SafeScalarBytes() int
	// Order returns the multiplicative order of the generator.
	Order() *saferith.Modulus
}

// Scalar represents a number modulo the order of some elliptic curve group.
//
// Arithmetic methods mutate the receiver and return it, allowing chaining.
type Scalar interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	Curve() Curve
	Add(Scalar) Scalar
	Sub(Scalar) Scalar
	Negate() Scalar
	Mul(Scalar) Scalar
	Invert() Scalar
	Equal(Scalar) bool
	IsZero() bool
	Set(Scalar) Scalar
	SetNat(*saferith.Nat) Scalar
	// Act acts on a point with this scalar, returning a new point.
	Act(Point) Point
	// ActOnBase acts on the generator with this scalar, returning a new point.
	ActOnBase() Point
	// Wipe overwrites the secret representation with zeros. The scalar remains
	// usable as the zero value afterwards.
	Wipe()
}

// Point represents an element of our curve. Add, Sub and Negate return new
// points, so values stored in shared maps are never mutated in place.
type Point interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	Curve() Curve
	Add(Point) Point
	Sub(Point) Point
	Negate() Point
	Equal(Point) bool
	IsIdentity() bool
}

// FromHash converts a hash value to a Scalar.
//
// There is some disagreement about how this should be done. [NSA] suggests
// that this is done in the obvious manner, but [SECG] truncates the hash
// to the bit-length of the curve order first. We follow [SECG] because
// that's what OpenSSL does. Additionally, OpenSSL right shifts excess
// bits from the number if the hash is too large and we mirror that too.
func FromHash(group Curve, h []byte) Scalar {
	order := group.Order()
	orderBits := order.BitLen()
	orderBytes := (orderBits + 7) / 8
	if len(h) > orderBytes {
		h = h[:orderBytes]
	}
	s := new(saferith.Nat).SetBytes(h)
	excess := len(h)*8 - orderBits
	if excess > 0 {
		s.Rsh(s, uint(excess), -1)
	}
	return group.NewScalar().SetNat(s)
}
