package curve

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/cronokirby/saferith"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Secp256k1 is the secp256k1 group, as used by Bitcoin and Ethereum.
type Secp256k1 struct{}

const secp256k1OrderHex = "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141"

var secp256k1Order *saferith.Modulus

func init() {
	orderBytes, err := hex.DecodeString(secp256k1OrderHex)
	if err != nil {
		panic(err)
	}
	secp256k1Order = saferith.ModulusFromBytes(orderBytes)
}

func (Secp256k1) NewPoint() Point {
	return new(Secp256k1Point)
}

func (Secp256k1) NewBasePoint() Point {
	out := new(Secp256k1Point)
	one := new(secp256k1.ModNScalar).SetInt(1)
	secp256k1.ScalarBaseMultNonConst(one, &out.value)
	return out
}

func (Secp256k1) NewScalar() Scalar {
	return new(Secp256k1Scalar)
}

func (Secp256k1) Name() string {
	return "secp256k1"
}

func (Secp256k1) SafeScalarBytes() int {
	return 32
}

func (Secp256k1) Order() *saferith.Modulus {
	return secp256k1Order
}

type Secp256k1Scalar struct {
	value secp256k1.ModNScalar
}

func secp256k1CastScalar(generic Scalar) *Secp256k1Scalar {
	out, ok := generic.(*Secp256k1Scalar)
	if !ok {
		panic(fmt.Sprintf("failed to convert to secp256k1Scalar: %v", generic))
	}
	return out
}

func (*Secp256k1Scalar) Curve() Curve {
	return Secp256k1{}
}

func (s *Secp256k1Scalar) MarshalBinary() ([]byte, error) {
	data := s.value.Bytes()
	return data[:], nil
}

func (s *Secp256k1Scalar) UnmarshalBinary(data []byte) error {
	if len(data) != 32 {
		return errors.New("secp256k1Scalar: invalid length")
	}
	var exactData [32]byte
	copy(exactData[:], data)
	if s.value.SetBytes(&exactData) != 0 {
		return errors.New("secp256k1Scalar: value overflows group order")
	}
	return nil
}

func (s *Secp256k1Scalar) Add(that Scalar) Scalar {
	other := secp256k1CastScalar(that)
	s.value.Add(&other.value)
	return s
}

func (s *Secp256k1Scalar) Sub(that Scalar) Scalar {
	other := secp256k1CastScalar(that)
	negated := new(secp256k1.ModNScalar).Set(&other.value)
	negated.Negate()
	s.value.Add(negated)
	return s
}

func (s *Secp256k1Scalar) Negate() Scalar {
	s.value.Negate()
	return s
}

func (s *Secp256k1Scalar) Mul(that Scalar) Scalar {
	other := secp256k1CastScalar(that)
	s.value.Mul(&other.value)
	return s
}

func (s *Secp256k1Scalar) Invert() Scalar {
	s.value.InverseNonConst()
	return s
}

func (s *Secp256k1Scalar) Equal(that Scalar) bool {
	other := secp256k1CastScalar(that)
	return s.value.Equals(&other.value)
}

func (s *Secp256k1Scalar) IsZero() bool {
	return s.value.IsZero()
}

func (s *Secp256k1Scalar) Set(that Scalar) Scalar {
	other := secp256k1CastScalar(that)
	s.value.Set(&other.value)
	return s
}

func (s *Secp256k1Scalar) SetNat(x *saferith.Nat) Scalar {
	reduced := new(saferith.Nat).Mod(x, secp256k1Order)
	if s.value.SetByteSlice(reduced.Bytes()) {
		panic("secp256k1Scalar: reduction modulo the group order failed")
	}
	return s
}

func (s *Secp256k1Scalar) Act(that Point) Point {
	other := secp256k1CastPoint(that)
	out := new(Secp256k1Point)
	secp256k1.ScalarMultNonConst(&s.value, &other.value, &out.value)
	return out
}

func (s *Secp256k1Scalar) ActOnBase() Point {
	out := new(Secp256k1Point)
	secp256k1.ScalarBaseMultNonConst(&s.value, &out.value)
	return out
}

func (s *Secp256k1Scalar) Wipe() {
	s.value.Zero()
}

type Secp256k1Point struct {
	value secp256k1.JacobianPoint
}

func secp256k1CastPoint(generic Point) *Secp256k1Point {
	out, ok := generic.(*Secp256k1Point)
	if !ok {
		panic(fmt.Sprintf("failed to convert to secp256k1Point: %v", generic))
	}
	return out
}

func (*Secp256k1Point) Curve() Curve {
	return Secp256k1{}
}

func (p *Secp256k1Point) MarshalBinary() ([]byte, error) {
	out := make([]byte, 33)
	// We need to normalize the point, to check for identity and oddness.
	// Identity is marshalled as 33 zero bytes, since the SEC1 compressed
	// encoding has no representation for it.
	if p.IsIdentity() {
		return out, nil
	}
	affine := p.affine()
	out[0] = 2
	if affine.Y.IsOdd() {
		out[0] = 3
	}
	xBytes := affine.X.Bytes()
	copy(out[1:], xBytes[:])
	return out, nil
}

func (p *Secp256k1Point) UnmarshalBinary(data []byte) error {
	if len(data) != 33 {
		return errors.New("secp256k1Point: invalid length")
	}
	var zero [33]byte
	if subtle.ConstantTimeCompare(data, zero[:]) == 1 {
		p.value = secp256k1.JacobianPoint{}
		return nil
	}
	if data[0] != 2 && data[0] != 3 {
		return errors.New("secp256k1Point: invalid format byte")
	}
	p.value.Z.SetInt(1)
	if p.value.X.SetByteSlice(data[1:]) {
		return errors.New("secp256k1Point: x coordinate out of range")
	}
	if !secp256k1.DecompressY(&p.value.X, data[0] == 3, &p.value.Y) {
		return errors.New("secp256k1Point: x coordinate not on the curve")
	}
	return nil
}

// affine returns a normalized affine copy of the inner point.
func (p *Secp256k1Point) affine() secp256k1.JacobianPoint {
	affine := p.value
	affine.ToAffine()
	affine.X.Normalize()
	affine.Y.Normalize()
	return affine
}

func (p *Secp256k1Point) Add(that Point) Point {
	other := secp256k1CastPoint(that)
	out := new(Secp256k1Point)
	secp256k1.AddNonConst(&p.value, &other.value, &out.value)
	return out
}

func (p *Secp256k1Point) Sub(that Point) Point {
	return p.Add(that.Negate())
}

func (p *Secp256k1Point) Negate() Point {
	out := new(Secp256k1Point)
	out.value.Set(&p.value)
	out.value.Y.Negate(1)
	out.value.Y.Normalize()
	return out
}

func (p *Secp256k1Point) Equal(that Point) bool {
	other := secp256k1CastPoint(that)
	if p.IsIdentity() || other.IsIdentity() {
		return p.IsIdentity() == other.IsIdentity()
	}
	pAffine, otherAffine := p.affine(), other.affine()
	return pAffine.X.Equals(&otherAffine.X) && pAffine.Y.Equals(&otherAffine.Y)
}

func (p *Secp256k1Point) IsIdentity() bool {
	z := p.value.Z
	return z.Normalize().IsZero()
}

// HasEvenY returns true if the affine y coordinate of this point is even.
// This is used by signature schemes which transmit only the x coordinate
// of points, like BIP-340.
func (p *Secp256k1Point) HasEvenY() bool {
	affine := p.affine()
	return !affine.Y.IsOdd()
}

// XBytes returns the big-endian affine x coordinate of this point.
func (p *Secp256k1Point) XBytes() []byte {
	affine := p.affine()
	xBytes := affine.X.Bytes()
	return xBytes[:]
}

// UncompressedBytes returns the 64 byte concatenation of the affine x and y
// coordinates, without the usual 0x04 prefix. This is the form hashed to
// derive Ethereum addresses.
func (p *Secp256k1Point) UncompressedBytes() []byte {
	affine := p.affine()
	xBytes := affine.X.Bytes()
	yBytes := affine.Y.Bytes()
	out := make([]byte, 64)
	copy(out[:32], xBytes[:])
	copy(out[32:], yBytes[:])
	return out
}

// XScalar returns the affine x coordinate of this point, interpreted as a
// scalar modulo the group order.
func (p *Secp256k1Point) XScalar() Scalar {
	return Secp256k1{}.NewScalar().SetNat(new(saferith.Nat).SetBytes(p.XBytes()))
}

// LiftX returns the curve point with the given x coordinate and even y,
// following the convention of BIP-340.
func LiftX(xBytes []byte) (*Secp256k1Point, error) {
	if len(xBytes) != 32 {
		return nil, errors.New("secp256k1Point.LiftX: invalid length")
	}
	out := new(Secp256k1Point)
	out.value.Z.SetInt(1)
	if out.value.X.SetByteSlice(xBytes) {
		return nil, errors.New("secp256k1Point.LiftX: x coordinate out of range")
	}
	if !secp256k1.DecompressY(&out.value.X, false, &out.value.Y) {
		return nil, errors.New("secp256k1Point.LiftX: x coordinate not on the curve")
	}
	return out, nil
}
