package curve

import (
	"errors"
	"fmt"

	"github.com/cronokirby/saferith"
	"github.com/gtank/ristretto255"
)

// Ristretto255 is the ristretto255 group, the prime-order group built on
// top of edwards25519 used by Schnorrkel signatures.
//
// The group order is the same as that of the edwards25519 subgroup.
type Ristretto255 struct{}

func (Ristretto255) NewPoint() Point {
	out := new(Ristretto255Point)
	out.value.Zero()
	return out
}

func (Ristretto255) NewBasePoint() Point {
	out := new(Ristretto255Point)
	out.value.Base()
	return out
}

func (Ristretto255) NewScalar() Scalar {
	out := new(Ristretto255Scalar)
	out.value.Zero()
	return out
}

func (Ristretto255) Name() string {
	return "ristretto255"
}

func (Ristretto255) SafeScalarBytes() int {
	return 64
}

func (Ristretto255) Order() *saferith.Modulus {
	return edwards25519Order
}

// FromUniformBytes interprets a 64 byte little-endian value modulo the group
// order, for deriving challenge scalars from wide hash output.
func (Ristretto255) FromUniformBytes(data []byte) Scalar {
	out := new(Ristretto255Scalar)
	out.value.FromUniformBytes(data)
	return out
}

type Ristretto255Scalar struct {
	value ristretto255.Scalar
}

func ristrettoCastScalar(generic Scalar) *Ristretto255Scalar {
	out, ok := generic.(*Ristretto255Scalar)
	if !ok {
		panic(fmt.Sprintf("failed to convert to ristretto255Scalar: %v", generic))
	}
	return out
}

func (*Ristretto255Scalar) Curve() Curve {
	return Ristretto255{}
}

func (s *Ristretto255Scalar) MarshalBinary() ([]byte, error) {
	return s.value.Encode(nil), nil
}

func (s *Ristretto255Scalar) UnmarshalBinary(data []byte) error {
	if err := s.value.Decode(data); err != nil {
		return errors.New("ristretto255Scalar: invalid scalar encoding")
	}
	return nil
}

func (s *Ristretto255Scalar) Add(that Scalar) Scalar {
	other := ristrettoCastScalar(that)
	s.value.Add(&s.value, &other.value)
	return s
}

func (s *Ristretto255Scalar) Sub(that Scalar) Scalar {
	other := ristrettoCastScalar(that)
	s.value.Subtract(&s.value, &other.value)
	return s
}

func (s *Ristretto255Scalar) Negate() Scalar {
	s.value.Negate(&s.value)
	return s
}

func (s *Ristretto255Scalar) Mul(that Scalar) Scalar {
	other := ristrettoCastScalar(that)
	s.value.Multiply(&s.value, &other.value)
	return s
}

func (s *Ristretto255Scalar) Invert() Scalar {
	s.value.Invert(&s.value)
	return s
}

func (s *Ristretto255Scalar) Equal(that Scalar) bool {
	other := ristrettoCastScalar(that)
	return s.value.Equal(&other.value) == 1
}

func (s *Ristretto255Scalar) IsZero() bool {
	zero := new(ristretto255.Scalar).Zero()
	return s.value.Equal(zero) == 1
}

func (s *Ristretto255Scalar) Set(that Scalar) Scalar {
	other := ristrettoCastScalar(that)
	s.value.Add(new(ristretto255.Scalar).Zero(), &other.value)
	return s
}

func (s *Ristretto255Scalar) SetNat(x *saferith.Nat) Scalar {
	reduced := new(saferith.Nat).Mod(x, edwards25519Order)
	buf := make([]byte, 32)
	reduced.FillBytes(buf)
	reverseInPlace(buf)
	if err := s.value.Decode(buf); err != nil {
		panic("ristretto255Scalar: reduction modulo the group order failed")
	}
	return s
}

func (s *Ristretto255Scalar) Act(that Point) Point {
	other := ristrettoCastPoint(that)
	out := new(Ristretto255Point)
	out.value.ScalarMult(&s.value, &other.value)
	return out
}

func (s *Ristretto255Scalar) ActOnBase() Point {
	out := new(Ristretto255Point)
	out.value.ScalarBaseMult(&s.value)
	return out
}

func (s *Ristretto255Scalar) Wipe() {
	s.value.Zero()
}

type Ristretto255Point struct {
	value ristretto255.Element
}

func ristrettoCastPoint(generic Point) *Ristretto255Point {
	out, ok := generic.(*Ristretto255Point)
	if !ok {
		panic(fmt.Sprintf("failed to convert to ristretto255Point: %v", generic))
	}
	return out
}

func (*Ristretto255Point) Curve() Curve {
	return Ristretto255{}
}

func (p *Ristretto255Point) MarshalBinary() ([]byte, error) {
	return p.value.Encode(nil), nil
}

func (p *Ristretto255Point) UnmarshalBinary(data []byte) error {
	if err := p.value.Decode(data); err != nil {
		return errors.New("ristretto255Point: invalid point encoding")
	}
	return nil
}

func (p *Ristretto255Point) Add(that Point) Point {
	other := ristrettoCastPoint(that)
	out := new(Ristretto255Point)
	out.value.Add(&p.value, &other.value)
	return out
}

func (p *Ristretto255Point) Sub(that Point) Point {
	other := ristrettoCastPoint(that)
	out := new(Ristretto255Point)
	out.value.Subtract(&p.value, &other.value)
	return out
}

func (p *Ristretto255Point) Negate() Point {
	out := new(Ristretto255Point)
	out.value.Negate(&p.value)
	return out
}

func (p *Ristretto255Point) Equal(that Point) bool {
	other := ristrettoCastPoint(that)
	return p.value.Equal(&other.value) == 1
}

func (p *Ristretto255Point) IsIdentity() bool {
	zero := new(ristretto255.Element).Zero()
	return p.value.Equal(zero) == 1
}
