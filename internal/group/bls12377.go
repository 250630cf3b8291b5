// bls12377.go - G1 of BLS12-377 as an alternative group backend (gnark-crypto).

package group

import (
	"bytes"
	"math/big"

	bls12377 "github.com/consensys/gnark-crypto/ecc/bls12-377"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
)

const bls12377Name = "bls12-377"

type blsGroup struct {
	order *big.Int
	gen   bls12377.G1Affine
}

var blsInstance = newBLSGroup()

func newBLSGroup() *blsGroup {
	_, _, g1Aff, _ := bls12377.Generators()
	return &blsGroup{order: fr.Modulus(), gen: g1Aff}
}

// BLS12377 returns the G1 subgroup of BLS12-377.
func BLS12377() Group {
	return blsInstance
}

type blsPoint struct {
	p bls12377.G1Affine
}

func (p *blsPoint) Bytes() []byte {
	b := p.p.Bytes()
	return b[:]
}

func (p *blsPoint) Equal(q Point) bool {
	other, ok := q.(*blsPoint)
	if !ok {
		return false
	}
	return p.p.Equal(&other.p)
}

func (p *blsPoint) IsIdentity() bool {
	return p.p.IsInfinity()
}

func (g *blsGroup) point(p Point) *bls12377.G1Affine {
	bp, ok := p.(*blsPoint)
	if !ok {
		panic("group: point does not belong to bls12-377")
	}
	return &bp.p
}

func (g *blsGroup) Name() string    { return bls12377Name }
func (g *blsGroup) Order() *big.Int { return g.order }
func (g *blsGroup) PointLen() int   { return bls12377.SizeOfG1AffineCompressed }
func (g *blsGroup) ScalarLen() int  { return fr.Bytes }

func (g *blsGroup) scalar(b []byte, reduce bool) (*Scalar, error) {
	if len(b) > fr.Bytes {
		return nil, ErrInvalidScalar
	}
	out := &blsScalar{}
	if reduce {
		out.e.SetBytes(b)
	} else if err := out.e.SetBytesCanonical(b); err != nil {
		return nil, ErrInvalidScalar
	}
	return &Scalar{v: out}, nil
}

// bigInt converts out of Montgomery form for gnark's scalar multiplication.
func (g *blsGroup) bigInt(k *Scalar) *big.Int {
	return asBLS(k.v).e.BigInt(new(big.Int))
}

func (g *blsGroup) Generator() Point {
	return &blsPoint{p: g.gen}
}

func (g *blsGroup) BaseMul(k *Scalar) Point {
	out := &blsPoint{}
	out.p.ScalarMultiplication(&g.gen, g.bigInt(k))
	return out
}

func (g *blsGroup) Mul(p Point, k *Scalar) Point {
	out := &blsPoint{}
	out.p.ScalarMultiplication(g.point(p), g.bigInt(k))
	return out
}

func (g *blsGroup) Add(p, q Point) Point {
	var a, b bls12377.G1Jac
	a.FromAffine(g.point(p))
	b.FromAffine(g.point(q))
	a.AddAssign(&b)
	out := &blsPoint{}
	out.p.FromJacobian(&a)
	return out
}

func (g *blsGroup) Neg(p Point) Point {
	out := &blsPoint{}
	out.p.Neg(g.point(p))
	return out
}

// DecodePoint relies on SetBytes for the on-curve and subgroup checks and
// re-encodes to reject non-canonical inputs.
func (g *blsGroup) DecodePoint(b []byte) (Point, error) {
	if len(b) != bls12377.SizeOfG1AffineCompressed {
		return nil, ErrInvalidPoint
	}
	out := &blsPoint{}
	if _, err := out.p.SetBytes(b); err != nil {
		return nil, ErrInvalidPoint
	}
	if out.p.IsInfinity() || !bytes.Equal(out.Bytes(), b) {
		return nil, ErrInvalidPoint
	}
	return out, nil
}

// HashToPoint uses the RFC 9380 suite shipped with gnark-crypto with domain as DST.
func (g *blsGroup) HashToPoint(domain, msg []byte) (Point, error) {
	p, err := bls12377.HashToG1(msg, domain)
	if err != nil {
		return nil, err
	}
	return &blsPoint{p: p}, nil
}
