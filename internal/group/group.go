// group.go - Prime-order group abstraction used by the blind signature scheme.
//
// A Group hides the concrete curve library behind canonical encodings so the
// protocol code never touches backend types. Two backends are provided:
// secp256k1 (decred) and the G1 group of BLS12-377 (gnark-crypto).

package group

import (
	"errors"
	"io"
	"math/big"
)

// MaxSamplingAttempts bounds every rejection-sampling loop in this package.
// Exceeding it means the randomness source is broken.
const MaxSamplingAttempts = 128

var (
	// ErrInvalidScalar is returned for scalars outside [0, order) or zero where a secret is required.
	ErrInvalidScalar = errors.New("invalid scalar")
	// ErrInvalidPoint is returned when an encoding is not a valid, non-identity group element.
	ErrInvalidPoint = errors.New("invalid point")
	// ErrEntropy signals that a bounded sampling loop ran out of attempts.
	ErrEntropy = errors.New("randomness source exhausted sampling attempts")
	// ErrHashToPoint signals that try-and-increment exhausted its counter.
	ErrHashToPoint = errors.New("hash to point exhausted attempts")
)

// Point is an element of a Group.
type Point interface {
	// Bytes returns the canonical compressed encoding.
	Bytes() []byte
	Equal(Point) bool
	IsIdentity() bool
}

// Group is a prime-order elliptic curve group.
type Group interface {
	Name() string
	Order() *big.Int
	// PointLen is the length of a compressed point encoding.
	PointLen() int
	// ScalarLen is the length of a scalar encoding.
	ScalarLen() int
	Generator() Point
	BaseMul(k *Scalar) Point
	Mul(p Point, k *Scalar) Point
	Add(p, q Point) Point
	Neg(p Point) Point
	// DecodePoint parses a compressed encoding, rejecting the identity,
	// off-curve and non-canonical inputs.
	DecodePoint(b []byte) (Point, error)
	// HashToPoint maps msg to a point with no known discrete log, under the
	// given domain separation tag.
	HashToPoint(domain, msg []byte) (Point, error)

	// scalar builds a backend scalar from big-endian bytes, reducing modulo
	// the order when reduce is set and rejecting non-canonical input otherwise.
	scalar(b []byte, reduce bool) (*Scalar, error)
}

// Sub returns p - q.
func Sub(g Group, p, q Point) Point {
	return g.Add(p, g.Neg(q))
}

// ByName returns the backend registered under name.
func ByName(name string) (Group, error) {
	switch name {
	case "", secp256k1Name:
		return Secp256k1(), nil
	case bls12377Name:
		return BLS12377(), nil
	}
	return nil, errors.New("unknown group " + name)
}

// RandomScalar draws a uniform non-zero scalar from r by rejection sampling.
// Bits above the order's bit length are masked off so each attempt succeeds
// with probability at least one half.
func RandomScalar(g Group, r io.Reader) (*Scalar, error) {
	size := g.ScalarLen()
	excess := uint(size*8 - g.Order().BitLen())
	buf := make([]byte, size)
	for i := 0; i < MaxSamplingAttempts; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		buf[0] &= 0xff >> excess
		s, err := g.scalar(buf, false)
		if err != nil || s.IsZero() {
			continue
		}
		return s, nil
	}
	return nil, ErrEntropy
}

// ScalarFromDigest reduces a digest of at most ScalarLen bytes modulo the
// group order. Longer input is a programming error and panics.
func ScalarFromDigest(g Group, digest []byte) *Scalar {
	s, err := g.scalar(digest, true)
	if err != nil {
		panic("group: digest wider than a scalar")
	}
	return s
}

// DecodeScalar parses a fixed-width big-endian scalar. Values >= order are rejected.
func DecodeScalar(g Group, b []byte) (*Scalar, error) {
	if len(b) != g.ScalarLen() {
		return nil, ErrInvalidScalar
	}
	return g.scalar(b, false)
}
