// secp256k1.go - secp256k1 backend built on decred's optimized curve package.

package group

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const secp256k1Name = "secp256k1"

type secpGroup struct {
	order *big.Int
}

var secpInstance = &secpGroup{order: new(big.Int).Set(secp256k1.S256().Params().N)}

// Secp256k1 returns the secp256k1 group.
func Secp256k1() Group {
	return secpInstance
}

// secpPoint holds an affine point (Z = 1) or the identity.
type secpPoint struct {
	p        secp256k1.JacobianPoint
	identity bool
}

func (p *secpPoint) Bytes() []byte {
	if p.identity {
		return make([]byte, secp256k1.PubKeyBytesLenCompressed)
	}
	return secp256k1.NewPublicKey(&p.p.X, &p.p.Y).SerializeCompressed()
}

func (p *secpPoint) Equal(q Point) bool {
	other, ok := q.(*secpPoint)
	if !ok {
		return false
	}
	return bytes.Equal(p.Bytes(), other.Bytes())
}

func (p *secpPoint) IsIdentity() bool {
	return p.identity
}

func isInfinity(j *secp256k1.JacobianPoint) bool {
	var x, y, z secp256k1.FieldVal
	x.Set(&j.X).Normalize()
	y.Set(&j.Y).Normalize()
	z.Set(&j.Z).Normalize()
	return (x.IsZero() && y.IsZero()) || z.IsZero()
}

func fromJacobian(j *secp256k1.JacobianPoint) *secpPoint {
	if isInfinity(j) {
		return &secpPoint{identity: true}
	}
	out := &secpPoint{}
	out.p.Set(j)
	out.p.ToAffine()
	return out
}

func (g *secpGroup) point(p Point) *secpPoint {
	sp, ok := p.(*secpPoint)
	if !ok {
		panic("group: point does not belong to secp256k1")
	}
	return sp
}

func (g *secpGroup) jacobian(p Point) secp256k1.JacobianPoint {
	var j secp256k1.JacobianPoint
	sp := g.point(p)
	if !sp.identity {
		j.Set(&sp.p)
	}
	return j
}

func modN(k *Scalar) *secp256k1.ModNScalar {
	return &asSecp(k.v).s
}

func (g *secpGroup) Name() string    { return secp256k1Name }
func (g *secpGroup) Order() *big.Int { return g.order }
func (g *secpGroup) PointLen() int   { return secp256k1.PubKeyBytesLenCompressed }
func (g *secpGroup) ScalarLen() int  { return 32 }

func (g *secpGroup) Generator() Point {
	one := &secpScalar{}
	one.s.SetInt(1)
	return g.BaseMul(&Scalar{v: one})
}

// scalar relies on SetByteSlice reducing modulo n and reporting overflow.
func (g *secpGroup) scalar(b []byte, reduce bool) (*Scalar, error) {
	if len(b) > g.ScalarLen() {
		return nil, ErrInvalidScalar
	}
	out := &secpScalar{}
	if overflow := out.s.SetByteSlice(b); overflow && !reduce {
		return nil, ErrInvalidScalar
	}
	return &Scalar{v: out}, nil
}

func (g *secpGroup) BaseMul(k *Scalar) Point {
	var res secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(modN(k), &res)
	return fromJacobian(&res)
}

func (g *secpGroup) Mul(p Point, k *Scalar) Point {
	if g.point(p).identity {
		return &secpPoint{identity: true}
	}
	var res secp256k1.JacobianPoint
	j := g.jacobian(p)
	secp256k1.ScalarMultNonConst(modN(k), &j, &res)
	return fromJacobian(&res)
}

func (g *secpGroup) Add(p, q Point) Point {
	a, b := g.jacobian(p), g.jacobian(q)
	var res secp256k1.JacobianPoint
	secp256k1.AddNonConst(&a, &b, &res)
	return fromJacobian(&res)
}

func (g *secpGroup) Neg(p Point) Point {
	sp := g.point(p)
	if sp.identity {
		return &secpPoint{identity: true}
	}
	out := &secpPoint{}
	out.p.Set(&sp.p)
	out.p.Y.Negate(1).Normalize()
	return out
}

func (g *secpGroup) DecodePoint(b []byte) (Point, error) {
	if len(b) != secp256k1.PubKeyBytesLenCompressed {
		return nil, ErrInvalidPoint
	}
	if b[0] != secp256k1.PubKeyFormatCompressedEven && b[0] != secp256k1.PubKeyFormatCompressedOdd {
		return nil, ErrInvalidPoint
	}
	pk, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, ErrInvalidPoint
	}
	out := &secpPoint{}
	pk.AsJacobian(&out.p)
	return out, nil
}

// HashToPoint runs try-and-increment: digest = SHA256(domain || msg || counter)
// is taken as the x-coordinate of an even-y point until it lands on the curve.
// About half of all digests do, so the counter cap is never reached in practice.
func (g *secpGroup) HashToPoint(domain, msg []byte) (Point, error) {
	return g.hashToPoint(domain, msg, MaxSamplingAttempts)
}

func (g *secpGroup) hashToPoint(domain, msg []byte, attempts uint32) (Point, error) {
	var ctr [4]byte
	candidate := make([]byte, secp256k1.PubKeyBytesLenCompressed)
	candidate[0] = secp256k1.PubKeyFormatCompressedEven
	for i := uint32(0); i < attempts; i++ {
		binary.BigEndian.PutUint32(ctr[:], i)
		h := sha256.New()
		h.Write(domain)
		h.Write(msg)
		h.Write(ctr[:])
		copy(candidate[1:], h.Sum(nil))
		if p, err := g.DecodePoint(candidate); err == nil {
			return p, nil
		}
	}
	return nil, ErrHashToPoint
}
