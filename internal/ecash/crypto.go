// crypto.go - Hash-to-curve and the BDHKE blind / sign / unblind steps.
//
// With Y = HashToCurve(secret), r the holder's blinding factor and k the mint key (K = kG):
//   B' = Y + rG          (holder)
//   C' = kB'             (mint)
//   C  = C' - rK = kY    (holder)

package ecash

import (
	"crypto/rand"
	"fmt"
	"io"

	"ecash/internal/group"
)

// HashToCurveDomain separates message hashing from every other hash in the protocol.
const HashToCurveDomain = "ecash_hash_to_curve"

// SecretSize is the length of wallet-generated note secrets.
const SecretSize = 32

// HashToCurve maps a note secret to the unblinded message point Y.
func HashToCurve(g group.Group, secret []byte) (group.Point, error) {
	return g.HashToPoint([]byte(HashToCurveDomain), secret)
}

// NewSecret draws a fresh note secret.
func NewSecret(r io.Reader) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	secret := make([]byte, SecretSize)
	if _, err := io.ReadFull(r, secret); err != nil {
		return nil, fmt.Errorf("reading secret: %w", err)
	}
	return secret, nil
}

// BlindedMessage is the holder's side of one blinding.
// Only B is sent to the mint; R stays with the holder.
type BlindedMessage struct {
	B group.Point
	R *group.Scalar
}

// Blind hides Y behind a fresh blinding factor. r must never be reused.
func Blind(g group.Group, y group.Point, r io.Reader) (*BlindedMessage, error) {
	if r == nil {
		r = rand.Reader
	}
	factor, err := group.RandomScalar(g, r)
	if err != nil {
		return nil, fmt.Errorf("drawing blinding factor: %w", err)
	}
	b := g.Add(y, g.BaseMul(factor))
	if b.IsIdentity() {
		return nil, ErrDegenerate
	}
	return &BlindedMessage{B: b, R: factor}, nil
}

// BlindSign computes C' = k*B' and a DLEQ proof that log_G(K) == log_B'(C').
func BlindSign(g group.Group, key *KeyPair, b group.Point, r io.Reader) (group.Point, *DLEQProof, error) {
	if b == nil || b.IsIdentity() {
		return nil, nil, ErrInvalidPoint
	}
	c := g.Mul(b, key.Private)
	if c.IsIdentity() {
		return nil, nil, ErrDegenerate
	}
	proof, err := ProveDLEQ(g, key.Private, key.Public, b, c, r)
	if err != nil {
		return nil, nil, err
	}
	return c, proof, nil
}

// Unblind strips the blinding factor: C = C' - r*K.
func Unblind(g group.Group, blindSig group.Point, factor *group.Scalar, mintKey group.Point) (group.Point, error) {
	c := group.Sub(g, blindSig, g.Mul(mintKey, factor))
	if c.IsIdentity() {
		return nil, ErrDegenerate
	}
	return c, nil
}
