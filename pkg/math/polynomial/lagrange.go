package polynomial

import (
	"fmt"

	"github.com/cronokirby/saferith"
	"github.com/fluxline/multisig/pkg/math/curve"
	"github.com/fluxline/multisig/pkg/party"
)

// Lagrange returns the Lagrange coefficients at 0 for all parties in the
// interpolation domain:
//
//	lⱼ(0) = Π_{k≠j} xₖ / (xₖ - xⱼ)
//
// where xᵢ is the scalar associated with party i. Multiplying party j's
// share by lⱼ(0) and summing over the domain recovers the secret f(0).
func Lagrange(group curve.Curve, interpolationDomain party.IDSlice) (map[party.ID]curve.Scalar, error) {
	xs := make(map[party.ID]curve.Scalar, len(interpolationDomain))
	for _, id := range interpolationDomain {
		x := id.Scalar(group)
		if x.IsZero() {
			return nil, fmt.Errorf("lagrange: party %s maps to the zero scalar", id)
		}
		xs[id] = x
	}

	coefficients := make(map[party.ID]curve.Scalar, len(interpolationDomain))
	for _, j := range interpolationDomain {
		xJ := xs[j]
		numerator := group.NewScalar()
		denominator := group.NewScalar()
		first := true
		for _, k := range interpolationDomain {
			if k == j {
				continue
			}
			xK := xs[k]
			diff := group.NewScalar().Set(xK).Sub(xJ)
			if diff.IsZero() {
				return nil, fmt.Errorf("lagrange: parties %s and %s map to the same scalar", j, k)
			}
			if first {
				numerator.Set(xK)
				denominator.Set(diff)
				first = false
				continue
			}
			numerator.Mul(xK)
			denominator.Mul(diff)
		}
		if first {
			// A single party interpolates trivially.
			coefficients[j] = group.NewScalar().SetNat(new(saferith.Nat).SetUint64(1))
			continue
		}
		coefficients[j] = numerator.Mul(denominator.Invert())
	}
	return coefficients, nil
}
