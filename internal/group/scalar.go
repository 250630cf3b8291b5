package group

import (
	"crypto/subtle"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// scalarValue is the backend field element behind a Scalar. Mixing values
// of two backends panics, like mixing points.
type scalarValue interface {
	add(scalarValue) scalarValue
	mul(scalarValue) scalarValue
	neg() scalarValue
	isZero() bool
	bytes() []byte
}

// Scalar is an integer modulo a group order. Scalars are immutable; every
// arithmetic method returns a fresh value.
type Scalar struct {
	v scalarValue
}

func (s *Scalar) Add(t *Scalar) *Scalar {
	return &Scalar{v: s.v.add(t.v)}
}

func (s *Scalar) Sub(t *Scalar) *Scalar {
	return &Scalar{v: s.v.add(t.v.neg())}
}

func (s *Scalar) Mul(t *Scalar) *Scalar {
	return &Scalar{v: s.v.mul(t.v)}
}

func (s *Scalar) Neg() *Scalar {
	return &Scalar{v: s.v.neg()}
}

func (s *Scalar) IsZero() bool {
	return s.v.isZero()
}

// Equal compares in constant time over the fixed-width encodings.
func (s *Scalar) Equal(t *Scalar) bool {
	if s == nil || t == nil {
		return false
	}
	return subtle.ConstantTimeCompare(s.Bytes(), t.Bytes()) == 1
}

// Bytes returns the fixed-width big-endian encoding.
func (s *Scalar) Bytes() []byte {
	return s.v.bytes()
}

// secpScalar is an element of Z/nZ for the secp256k1 order n.
type secpScalar struct {
	s secp256k1.ModNScalar
}

func asSecp(v scalarValue) *secpScalar {
	s, ok := v.(*secpScalar)
	if !ok {
		panic("group: scalar does not belong to secp256k1")
	}
	return s
}

func (a *secpScalar) add(b scalarValue) scalarValue {
	out := &secpScalar{}
	out.s.Add2(&a.s, &asSecp(b).s)
	return out
}

func (a *secpScalar) mul(b scalarValue) scalarValue {
	out := &secpScalar{}
	out.s.Mul2(&a.s, &asSecp(b).s)
	return out
}

func (a *secpScalar) neg() scalarValue {
	out := &secpScalar{}
	out.s.NegateVal(&a.s)
	return out
}

func (a *secpScalar) isZero() bool { return a.s.IsZero() }

func (a *secpScalar) bytes() []byte {
	b := a.s.Bytes()
	return b[:]
}

// blsScalar is an element of the BLS12-377 scalar field.
type blsScalar struct {
	e fr.Element
}

func asBLS(v scalarValue) *blsScalar {
	s, ok := v.(*blsScalar)
	if !ok {
		panic("group: scalar does not belong to bls12-377")
	}
	return s
}

func (a *blsScalar) add(b scalarValue) scalarValue {
	out := &blsScalar{}
	out.e.Add(&a.e, &asBLS(b).e)
	return out
}

func (a *blsScalar) mul(b scalarValue) scalarValue {
	out := &blsScalar{}
	out.e.Mul(&a.e, &asBLS(b).e)
	return out
}

func (a *blsScalar) neg() scalarValue {
	out := &blsScalar{}
	out.e.Neg(&a.e)
	return out
}

func (a *blsScalar) isZero() bool { return a.e.IsZero() }

func (a *blsScalar) bytes() []byte {
	b := a.e.Bytes()
	return b[:]
}
