package polynomial

import (
	"encoding/binary"
	"errors"

	"github.com/fluxline/multisig/pkg/math/curve"
)

// Exponent represents a polynomial whose coefficients are points, i.e. the
// image F(X) = [f(X)]⋅G of a scalar polynomial f. It is used as a Feldman
// commitment to f: anyone holding F can verify a share f(x) against
// [f(x)]⋅G = F(x) without learning f.
type Exponent struct {
	group        curve.Curve
	coefficients []curve.Point
}

// NewPolynomialExponent returns [polynomial]⋅G, the commitment to all
// coefficients of polynomial.
func NewPolynomialExponent(polynomial *Polynomial) *Exponent {
	p := &Exponent{
		group:        polynomial.group,
		coefficients: make([]curve.Point, len(polynomial.coefficients)),
	}
	for i, c := range polynomial.coefficients {
		p.coefficients[i] = c.ActOnBase()
	}
	return p
}

// EmptyExponent returns an uninitialized Exponent over the given group,
// ready to be unmarshalled into.
func EmptyExponent(group curve.Curve) *Exponent {
	return &Exponent{group: group}
}

// Evaluate evaluates the commitment at x, using Horner's method over points.
func (p *Exponent) Evaluate(x curve.Scalar) curve.Point {
	result := p.group.NewPoint()
	for i := len(p.coefficients) - 1; i >= 0; i-- {
		// Bₙ₋₁ = [x]Bₙ + Aₙ₋₁
		result = x.Act(result).Add(p.coefficients[i])
	}
	return result
}

// Constant returns the constant coefficient, i.e. the public key [f(0)]⋅G.
func (p *Exponent) Constant() curve.Point {
	return p.coefficients[0]
}

// Degree returns the degree t of the polynomial.
func (p *Exponent) Degree() int {
	return len(p.coefficients) - 1
}

// Add sets p to p + q, coefficient-wise.
func (p *Exponent) Add(q *Exponent) error {
	if len(p.coefficients) != len(q.coefficients) {
		return errors.New("polynomial.Exponent: adding polynomials of different degree")
	}
	for i := range p.coefficients {
		p.coefficients[i] = p.coefficients[i].Add(q.coefficients[i])
	}
	return nil
}

// Sum returns the sum of all polynomials in the slice.
func Sum(polynomials []*Exponent) (*Exponent, error) {
	if len(polynomials) == 0 {
		return nil, errors.New("polynomial.Exponent: empty sum")
	}
	summed := polynomials[0].copy()
	for _, q := range polynomials[1:] {
		if err := summed.Add(q); err != nil {
			return nil, err
		}
	}
	return summed, nil
}

func (p *Exponent) copy() *Exponent {
	q := &Exponent{
		group:        p.group,
		coefficients: make([]curve.Point, len(p.coefficients)),
	}
	// Points are never mutated in place, so sharing them is safe.
	copy(q.coefficients, p.coefficients)
	return q
}

// Equal returns true if p and q commit to the same polynomial.
func (p *Exponent) Equal(q *Exponent) bool {
	if len(p.coefficients) != len(q.coefficients) {
		return false
	}
	for i := range p.coefficients {
		if !p.coefficients[i].Equal(q.coefficients[i]) {
			return false
		}
	}
	return true
}

// MarshalBinary writes a 4 byte coefficient count followed by the fixed
// width encodings of the coefficients.
func (p *Exponent) MarshalBinary() ([]byte, error) {
	var out []byte
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(p.coefficients)))
	out = append(out, count[:]...)
	for _, c := range p.coefficients {
		data, err := c.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	return out, nil
}

// UnmarshalBinary reads back the output of MarshalBinary. The receiver must
// have been created with EmptyExponent so that the group is known.
func (p *Exponent) UnmarshalBinary(data []byte) error {
	if p.group == nil {
		return errors.New("polynomial.Exponent: unmarshal into uninitialized struct")
	}
	if len(data) < 4 {
		return errors.New("polynomial.Exponent: truncated input")
	}
	count := binary.BigEndian.Uint32(data[:4])
	data = data[4:]

	identity, err := p.group.NewPoint().MarshalBinary()
	if err != nil {
		return err
	}
	pointSize := len(identity)
	if count == 0 || len(data) != int(count)*pointSize {
		return errors.New("polynomial.Exponent: invalid input length")
	}

	coefficients := make([]curve.Point, count)
	for i := range coefficients {
		coefficients[i] = p.group.NewPoint()
		if err := coefficients[i].UnmarshalBinary(data[:pointSize]); err != nil {
			return err
		}
		data = data[pointSize:]
	}
	p.coefficients = coefficients
	return nil
}
