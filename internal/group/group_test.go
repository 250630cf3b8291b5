package group

import (
	"bytes"
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func backends() []Group {
	return []Group{Secp256k1(), BLS12377()}
}

func scalarOf(t *testing.T, g Group, v int64) *Scalar {
	t.Helper()
	b := make([]byte, g.ScalarLen())
	big.NewInt(v).FillBytes(b)
	s, err := DecodeScalar(g, b)
	require.NoError(t, err)
	return s
}

func orderMinus(g Group, v int64) []byte {
	b := make([]byte, g.ScalarLen())
	new(big.Int).Sub(g.Order(), big.NewInt(v)).FillBytes(b)
	return b
}

func TestGroupLaw(t *testing.T) {
	for _, g := range backends() {
		t.Run(g.Name(), func(t *testing.T) {
			a, err := RandomScalar(g, rand.Reader)
			require.NoError(t, err)
			b, err := RandomScalar(g, rand.Reader)
			require.NoError(t, err)

			sum := g.Add(g.BaseMul(a), g.BaseMul(b))
			assert.True(t, sum.Equal(g.BaseMul(a.Add(b))), "aG + bG != (a+b)G")

			prod := g.Mul(g.BaseMul(a), b)
			assert.True(t, prod.Equal(g.BaseMul(a.Mul(b))), "b(aG) != (ab)G")

			diff := Sub(g, g.BaseMul(a), g.BaseMul(b))
			assert.True(t, diff.Equal(g.BaseMul(a.Sub(b))))

			zero := g.Add(g.BaseMul(a), g.BaseMul(a.Neg()))
			assert.True(t, zero.IsIdentity())
			assert.True(t, g.Add(zero, g.BaseMul(b)).Equal(g.BaseMul(b)))

			one := scalarOf(t, g, 1)
			assert.True(t, g.BaseMul(one).Equal(g.Generator()))
		})
	}
}

func TestScalarArithmetic(t *testing.T) {
	for _, g := range backends() {
		t.Run(g.Name(), func(t *testing.T) {
			two, three := scalarOf(t, g, 2), scalarOf(t, g, 3)
			assert.Len(t, two.Bytes(), g.ScalarLen())
			assert.True(t, two.Add(three).Equal(scalarOf(t, g, 5)))
			assert.True(t, two.Mul(three).Equal(scalarOf(t, g, 6)))
			assert.True(t, three.Sub(two).Equal(scalarOf(t, g, 1)))
			assert.Equal(t, orderMinus(g, 1), three.Sub(two).Neg().Bytes())
			assert.True(t, two.Sub(two).IsZero())
			assert.False(t, two.Equal(nil))

			// (n-1) + 2 wraps to 1.
			top, err := DecodeScalar(g, orderMinus(g, 1))
			require.NoError(t, err)
			assert.True(t, top.Add(two).Equal(scalarOf(t, g, 1)))
		})
	}
}

func TestScalarFromDigestReduces(t *testing.T) {
	for _, g := range backends() {
		t.Run(g.Name(), func(t *testing.T) {
			order := make([]byte, g.ScalarLen())
			g.Order().FillBytes(order)
			assert.True(t, ScalarFromDigest(g, order).IsZero())

			onePast := make([]byte, g.ScalarLen())
			new(big.Int).Add(g.Order(), big.NewInt(1)).FillBytes(onePast)
			assert.True(t, ScalarFromDigest(g, onePast).Equal(scalarOf(t, g, 1)))

			digest := bytes.Repeat([]byte{0xff}, 32)
			want := new(big.Int).Mod(new(big.Int).SetBytes(digest), g.Order())
			assert.Equal(t, 0, want.Cmp(new(big.Int).SetBytes(ScalarFromDigest(g, digest).Bytes())))
			assert.Panics(t, func() { ScalarFromDigest(g, make([]byte, g.ScalarLen()+1)) })
		})
	}
}

func TestScalarsDoNotMixBackends(t *testing.T) {
	a := scalarOf(t, Secp256k1(), 2)
	b := scalarOf(t, BLS12377(), 2)
	assert.Panics(t, func() { a.Add(b) })
	assert.Panics(t, func() { BLS12377().BaseMul(a) })
}

func TestPointEncoding(t *testing.T) {
	for _, g := range backends() {
		t.Run(g.Name(), func(t *testing.T) {
			k, err := RandomScalar(g, rand.Reader)
			require.NoError(t, err)
			p := g.BaseMul(k)

			enc := p.Bytes()
			require.Len(t, enc, g.PointLen())
			q, err := g.DecodePoint(enc)
			require.NoError(t, err)
			assert.True(t, p.Equal(q))

			_, err = g.DecodePoint(enc[1:])
			assert.ErrorIs(t, err, ErrInvalidPoint)

			identity := g.Add(p, g.Neg(p))
			_, err = g.DecodePoint(identity.Bytes())
			assert.ErrorIs(t, err, ErrInvalidPoint)
		})
	}
}

func TestSecp256k1RejectsOffCurve(t *testing.T) {
	g := Secp256k1()
	bad := bytes.Repeat([]byte{0xff}, g.PointLen())
	bad[0] = 0x02
	_, err := g.DecodePoint(bad)
	assert.ErrorIs(t, err, ErrInvalidPoint)

	wrongPrefix := g.Generator().Bytes()
	wrongPrefix[0] = 0x04
	_, err = g.DecodePoint(wrongPrefix)
	assert.ErrorIs(t, err, ErrInvalidPoint)
}

func TestHashToPoint(t *testing.T) {
	for _, g := range backends() {
		t.Run(g.Name(), func(t *testing.T) {
			domain := []byte("test_domain")
			p1, err := g.HashToPoint(domain, []byte("secret"))
			require.NoError(t, err)
			p2, err := g.HashToPoint(domain, []byte("secret"))
			require.NoError(t, err)
			assert.True(t, p1.Equal(p2), "hash to point must be deterministic")
			assert.False(t, p1.IsIdentity())

			p3, err := g.HashToPoint(domain, []byte("other secret"))
			require.NoError(t, err)
			assert.False(t, p1.Equal(p3))

			p4, err := g.HashToPoint([]byte("another_domain"), []byte("secret"))
			require.NoError(t, err)
			assert.False(t, p1.Equal(p4), "domain tag must separate outputs")
		})
	}
}

func TestSecp256k1HashToPointExhaustion(t *testing.T) {
	g := Secp256k1().(*secpGroup)
	_, err := g.hashToPoint([]byte("test_domain"), []byte("secret"), 0)
	assert.ErrorIs(t, err, ErrHashToPoint)

	// Counter 0 is off the curve for this input, so a single attempt fails too.
	domain, msg := findOffCurveFirstCandidate(t, g)
	_, err = g.hashToPoint(domain, msg, 1)
	assert.ErrorIs(t, err, ErrHashToPoint)

	p, err := g.hashToPoint(domain, msg, MaxSamplingAttempts)
	require.NoError(t, err)
	assert.False(t, p.IsIdentity())
}

// findOffCurveFirstCandidate searches for a message whose first
// try-and-increment candidate is not an x-coordinate on the curve.
func findOffCurveFirstCandidate(t *testing.T, g *secpGroup) ([]byte, []byte) {
	t.Helper()
	domain := []byte("test_domain")
	for i := 0; i < 256; i++ {
		msg := []byte{byte(i)}
		if _, err := g.hashToPoint(domain, msg, 1); err != nil {
			return domain, msg
		}
	}
	t.Fatal("no message with an off-curve first candidate")
	return nil, nil
}

func TestRandomScalar(t *testing.T) {
	for _, g := range backends() {
		t.Run(g.Name(), func(t *testing.T) {
			s, err := RandomScalar(g, rand.Reader)
			require.NoError(t, err)
			assert.False(t, s.IsZero())
			assert.Equal(t, -1, new(big.Int).SetBytes(s.Bytes()).Cmp(g.Order()))

			_, err = RandomScalar(g, zeroReader{})
			assert.ErrorIs(t, err, ErrEntropy)

			_, err = RandomScalar(g, bytes.NewReader(nil))
			assert.Error(t, err)
		})
	}
}

func TestDecodeScalar(t *testing.T) {
	for _, g := range backends() {
		t.Run(g.Name(), func(t *testing.T) {
			s, err := RandomScalar(g, rand.Reader)
			require.NoError(t, err)
			back, err := DecodeScalar(g, s.Bytes())
			require.NoError(t, err)
			assert.True(t, s.Equal(back))

			orderBytes := make([]byte, len(s.Bytes()))
			g.Order().FillBytes(orderBytes)
			_, err = DecodeScalar(g, orderBytes)
			assert.ErrorIs(t, err, ErrInvalidScalar)

			_, err = DecodeScalar(g, []byte{1, 2, 3})
			assert.ErrorIs(t, err, ErrInvalidScalar)
		})
	}
}

func TestByName(t *testing.T) {
	g, err := ByName("bls12-377")
	require.NoError(t, err)
	assert.Equal(t, "bls12-377", g.Name())

	g, err = ByName("")
	require.NoError(t, err)
	assert.Equal(t, "secp256k1", g.Name())

	_, err = ByName("p256")
	assert.Error(t, err)
}
