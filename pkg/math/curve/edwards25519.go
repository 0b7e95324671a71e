package curve

import (
	"encoding/hex"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/cronokirby/saferith"
)

// Edwards25519 is the prime-order subgroup of the twisted Edwards curve
// edwards25519, with the encoding conventions of RFC 8032.
type Edwards25519 struct{}

const edwards25519OrderHex = "1000000000000000000000000000000014DEF9DEA2F79CD65812631A5CF5D3ED"

var edwards25519Order *saferith.Modulus

func init() {
	orderBytes, err := hex.DecodeString(edwards25519OrderHex)
	if err != nil {
		panic(err)
	}
	edwards25519Order = saferith.ModulusFromBytes(orderBytes)
}

func (Edwards25519) NewPoint() Point {
	out := new(Edwards25519Point)
	out.value.Set(edwards25519.NewIdentityPoint())
	return out
}

func (Edwards25519) NewBasePoint() Point {
	out := new(Edwards25519Point)
	out.value.Set(edwards25519.NewGeneratorPoint())
	return out
}

func (Edwards25519) NewScalar() Scalar {
	return new(Edwards25519Scalar)
}

func (Edwards25519) Name() string {
	return "ed25519"
}

func (Edwards25519) SafeScalarBytes() int {
	return 64
}

func (Edwards25519) Order() *saferith.Modulus {
	return edwards25519Order
}

// FromUniformBytes interprets a 64 byte little-endian value modulo the group
// order, as RFC 8032 does for challenge scalars.
func (Edwards25519) FromUniformBytes(data []byte) Scalar {
	out := new(Edwards25519Scalar)
	if _, err := out.value.SetUniformBytes(data); err != nil {
		panic("edwards25519: FromUniformBytes requires 64 bytes of input")
	}
	return out
}

type Edwards25519Scalar struct {
	value edwards25519.Scalar
}

func edwards25519CastScalar(generic Scalar) *Edwards25519Scalar {
	out, ok := generic.(*Edwards25519Scalar)
	if !ok {
		panic(fmt.Sprintf("failed to convert to edwards25519Scalar: %v", generic))
	}
	return out
}

func (*Edwards25519Scalar) Curve() Curve {
	return Edwards25519{}
}

func (s *Edwards25519Scalar) MarshalBinary() ([]byte, error) {
	return s.value.Bytes(), nil
}

func (s *Edwards25519Scalar) UnmarshalBinary(data []byte) error {
	if _, err := s.value.SetCanonicalBytes(data); err != nil {
		return errors.New("edwards25519Scalar: invalid scalar encoding")
	}
	return nil
}

func (s *Edwards25519Scalar) Add(that Scalar) Scalar {
	other := edwards25519CastScalar(that)
	s.value.Add(&s.value, &other.value)
	return s
}

func (s *Edwards25519Scalar) Sub(that Scalar) Scalar {
	other := edwards25519CastScalar(that)
	s.value.Subtract(&s.value, &other.value)
	return s
}

func (s *Edwards25519Scalar) Negate() Scalar {
	s.value.Negate(&s.value)
	return s
}

func (s *Edwards25519Scalar) Mul(that Scalar) Scalar {
	other := edwards25519CastScalar(that)
	s.value.Multiply(&s.value, &other.value)
	return s
}

func (s *Edwards25519Scalar) Invert() Scalar {
	s.value.Invert(&s.value)
	return s
}

func (s *Edwards25519Scalar) Equal(that Scalar) bool {
	other := edwards25519CastScalar(that)
	return s.value.Equal(&other.value) == 1
}

func (s *Edwards25519Scalar) IsZero() bool {
	return s.value.Equal(edwards25519.NewScalar()) == 1
}

func (s *Edwards25519Scalar) Set(that Scalar) Scalar {
	other := edwards25519CastScalar(that)
	s.value.Set(&other.value)
	return s
}

func (s *Edwards25519Scalar) SetNat(x *saferith.Nat) Scalar {
	reduced := new(saferith.Nat).Mod(x, edwards25519Order)
	// The library expects little-endian, saferith produces big-endian.
	buf := make([]byte, 32)
	reduced.FillBytes(buf)
	reverseInPlace(buf)
	if _, err := s.value.SetCanonicalBytes(buf); err != nil {
		panic("edwards25519Scalar: reduction modulo the group order failed")
	}
	return s
}

func (s *Edwards25519Scalar) Act(that Point) Point {
	other := edwards25519CastPoint(that)
	out := new(Edwards25519Point)
	out.value.ScalarMult(&s.value, &other.value)
	return out
}

func (s *Edwards25519Scalar) ActOnBase() Point {
	out := new(Edwards25519Point)
	out.value.ScalarBaseMult(&s.value)
	return out
}

func (s *Edwards25519Scalar) Wipe() {
	s.value = *edwards25519.NewScalar()
}

type Edwards25519Point struct {
	value edwards25519.Point
}

func edwards25519CastPoint(generic Point) *Edwards25519Point {
	out, ok := generic.(*Edwards25519Point)
	if !ok {
		panic(fmt.Sprintf("failed to convert to edwards25519Point: %v", generic))
	}
	return out
}

func (*Edwards25519Point) Curve() Curve {
	return Edwards25519{}
}

func (p *Edwards25519Point) MarshalBinary() ([]byte, error) {
	return p.value.Bytes(), nil
}

func (p *Edwards25519Point) UnmarshalBinary(data []byte) error {
	if _, err := p.value.SetBytes(data); err != nil {
		return errors.New("edwards25519Point: invalid point encoding")
	}
	return nil
}

func (p *Edwards25519Point) Add(that Point) Point {
	other := edwards25519CastPoint(that)
	out := new(Edwards25519Point)
	out.value.Add(&p.value, &other.value)
	return out
}

func (p *Edwards25519Point) Sub(that Point) Point {
	other := edwards25519CastPoint(that)
	out := new(Edwards25519Point)
	out.value.Subtract(&p.value, &other.value)
	return out
}

func (p *Edwards25519Point) Negate() Point {
	out := new(Edwards25519Point)
	out.value.Negate(&p.value)
	return out
}

func (p *Edwards25519Point) Equal(that Point) bool {
	other := edwards25519CastPoint(that)
	return p.value.Equal(&other.value) == 1
}

func (p *Edwards25519Point) IsIdentity() bool {
	return p.value.Equal(edwards25519.NewIdentityPoint()) == 1
}

func reverseInPlace(buf []byte) {
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
}
