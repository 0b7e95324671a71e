// Package sample implements sampling of random group scalars.
package sample

import (
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/fluxline/multisig/pkg/math/curve"
)

// maxIterations is the number of times we attempt to generate a non-zero
// scalar before giving up. Each iteration succeeds with overwhelming
// probability, so reaching this bound indicates a broken source of
// randomness.
const maxIterations = 255

var errMaxIterations = fmt.Errorf("sample: failed to generate after %d iterations", maxIterations)

func mustReadBytes(rand io.Reader, buf []byte) {
	for i := 0; i < maxIterations; i++ {
		if _, err := io.ReadFull(rand, buf); err == nil {
			return
		}
	}
	panic(errMaxIterations)
}

// Scalar returns a new random scalar of the given group, sampled from rand.
//
// The scalar is guaranteed to be non-zero, since zero scalars leak secrets
// when used as polynomial coefficients or nonces.
func Scalar(rand io.Reader, group curve.Curve) curve.Scalar {
	buf := make([]byte, group.SafeScalarBytes())
	for i := 0; i < maxIterations; i++ {
		mustReadBytes(rand, buf)
		s := group.NewScalar().SetNat(new(saferith.Nat).SetBytes(buf))
		if !s.IsZero() {
			return s
		}
	}
	panic(errMaxIterations)
}

// ScalarPointPair returns a new random scalar along with its public image
// on the generator.
func ScalarPointPair(rand io.Reader, group curve.Curve) (curve.Scalar, curve.Point) {
	s := Scalar(rand, group)
	return s, s.ActOnBase()
}
