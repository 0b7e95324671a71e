package curve

import (
	"crypto/rand"
	"testing"

	"github.com/cronokirby/saferith"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allGroups() []Curve {
	return []Curve{Secp256k1{}, Edwards25519{}, Ristretto255{}}
}

func sampleScalar(t *testing.T, group Curve) Scalar {
	t.Helper()
	buf := make([]byte, group.SafeScalarBytes())
	_, err := rand.Read(buf)
	require.NoError(t, err)
	return group.NewScalar().SetNat(new(saferith.Nat).SetBytes(buf))
}

func TestScalarMarshalRoundTrip(t *testing.T) {
	for _, group := range allGroups() {
		t.Run(group.Name(), func(t *testing.T) {
			for i := 0; i < 16; i++ {
				s := sampleScalar(t, group)
				data, err := s.MarshalBinary()
				require.NoError(t, err)
				s2 := group.NewScalar()
				require.NoError(t, s2.UnmarshalBinary(data))
				assert.True(t, s.Equal(s2))
			}
		})
	}
}

func TestPointMarshalRoundTrip(t *testing.T) {
	for _, group := range allGroups() {
		t.Run(group.Name(), func(t *testing.T) {
			for i := 0; i < 16; i++ {
				p := sampleScalar(t, group).ActOnBase()
				data, err := p.MarshalBinary()
				require.NoError(t, err)
				p2 := group.NewPoint()
				require.NoError(t, p2.UnmarshalBinary(data))
				assert.True(t, p.Equal(p2))
			}
		})
	}
}

func TestIdentityMarshalRoundTrip(t *testing.T) {
	for _, group := range allGroups() {
		t.Run(group.Name(), func(t *testing.T) {
			identity := group.NewPoint()
			require.True(t, identity.IsIdentity())
			data, err := identity.MarshalBinary()
			require.NoError(t, err)
			p := group.NewPoint()
			require.NoError(t, p.UnmarshalBinary(data))
			assert.True(t, p.IsIdentity())
		})
	}
}

func TestScalarArithmetic(t *testing.T) {
	for _, group := range allGroups() {
		t.Run(group.Name(), func(t *testing.T) {
			a := sampleScalar(t, group)
			b := sampleScalar(t, group)

			// a + b - b == a
			sum := group.NewScalar().Set(a).Add(b).Sub(b)
			assert.True(t, sum.Equal(a))

			// a * b * b⁻¹ == a
			bInv := group.NewScalar().Set(b).Invert()
			product := group.NewScalar().Set(a).Mul(b).Mul(bInv)
			assert.True(t, product.Equal(a))

			// a + (-a) == 0
			negated := group.NewScalar().Set(a).Negate()
			assert.True(t, group.NewScalar().Set(a).Add(negated).IsZero())
		})
	}
}

func TestActDistributesOverAdd(t *testing.T) {
	for _, group := range allGroups() {
		t.Run(group.Name(), func(t *testing.T) {
			a := sampleScalar(t, group)
			b := sampleScalar(t, group)

			sum := group.NewScalar().Set(a).Add(b)
			lhs := sum.ActOnBase()
			rhs := a.ActOnBase().Add(b.ActOnBase())
			assert.True(t, lhs.Equal(rhs))

			p := sampleScalar(t, group).ActOnBase()
			lhs = sum.Act(p)
			rhs = a.Act(p).Add(b.Act(p))
			assert.True(t, lhs.Equal(rhs))
		})
	}
}

func TestFromHashInRange(t *testing.T) {
	for _, group := range allGroups() {
		t.Run(group.Name(), func(t *testing.T) {
			digest := make([]byte, 64)
			_, err := rand.Read(digest)
			require.NoError(t, err)
			s := FromHash(group, digest)
			data, err := s.MarshalBinary()
			require.NoError(t, err)
			s2 := group.NewScalar()
			require.NoError(t, s2.UnmarshalBinary(data))
			assert.True(t, s.Equal(s2))
		})
	}
}

func TestWipeLeavesZero(t *testing.T) {
	for _, group := range allGroups() {
		t.Run(group.Name(), func(t *testing.T) {
			s := sampleScalar(t, group)
			s.Wipe()
			assert.True(t, s.IsZero())
		})
	}
}

func TestSecp256k1LiftX(t *testing.T) {
	for i := 0; i < 8; i++ {
		p := sampleScalar(t, Secp256k1{}).ActOnBase().(*Secp256k1Point)
		lifted, err := LiftX(p.XBytes())
		require.NoError(t, err)
		require.True(t, lifted.HasEvenY())
		if p.HasEvenY() {
			assert.True(t, p.Equal(lifted))
		} else {
			assert.True(t, p.Negate().Equal(lifted))
		}
	}
}
