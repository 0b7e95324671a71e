// Package polynomial implements polynomials over curve scalars, and their
// projections into the group, as used for verifiable secret sharing.
package polynomial

import (
	"io"

	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/math/sample"
)

// Polynomial represents a function f(X) = a₀ + a₁⋅X + … + aₜ⋅Xᵗ over the
// scalars of some group.
type Polynomial struct {
	group        curve.Curve
	coefficients []curve.Scalar
}

// NewPolynomial generates a Polynomial of degree t with a fixed constant
// coefficient, and the remaining coefficients sampled from rand.
//
// If constant is nil, the constant coefficient is sampled as well.
func NewPolynomial(group curve.Curve, degree int, constant curve.Scalar, rand io.Reader) *Polynomial {
	polynomial := &Polynomial{
		group:        group,
		coefficients: make([]curve.Scalar, degree+1),
	}

	if constant == nil {
		constant = sample.Scalar(rand, group)
	}
	polynomial.coefficients[0] = constant

	for i := 1; i <= degree; i++ {
		polynomial.coefficients[i] = sample.Scalar(rand, group)
	}
	return polynomial
}

// Evaluate evaluates the polynomial at the point x, using Horner's method.
func (p *Polynomial) Evaluate(x curve.Scalar) curve.Scalar {
	if x.IsZero() {
		panic("polynomial: attempt to leak the secret by evaluating at 0")
	}

	result := p.group.NewScalar()
	for i := len(p.coefficients) - 1; i >= 0; i-- {
		// bₙ₋₁ = bₙ * x + aₙ₋₁
		result.Mul(x).Add(p.coefficients[i])
	}
	return result
}

// Constant returns a copy of the constant coefficient, i.e. the shared secret.
func (p *Polynomial) Constant() curve.Scalar {
	return p.group.NewScalar().Set(p.coefficients[0])
}

// Degree returns the degree t of the polynomial.
func (p *Polynomial) Degree() int {
	return len(p.coefficients) - 1
}

// Wipe overwrites all coefficients with zeros.
func (p *Polynomial) Wipe() {
	for _, c := range p.coefficients {
		c.Wipe()
	}
}
