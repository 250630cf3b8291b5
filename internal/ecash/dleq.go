// dleq.go - Non-interactive proof of discrete-log equality (Chaum-Pedersen + Fiat-Shamir).

package ecash

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"ecash/internal/group"
)

// DLEQProof shows log_G(A) == log_B'(C') without revealing the exponent.
type DLEQProof struct {
	E *group.Scalar // challenge
	S *group.Scalar // response
}

// ProveDLEQ proves A = aG and C = aB. The nonce is drawn fresh for every proof;
// reusing it across two challenges would reveal a.
//
//	R1 = kG, R2 = kB
//	e  = H(R1 || R2 || A || C)
//	s  = k + e*a
func ProveDLEQ(g group.Group, a *group.Scalar, A, B, C group.Point, r io.Reader) (*DLEQProof, error) {
	if r == nil {
		r = rand.Reader
	}
	k, err := group.RandomScalar(g, r)
	if err != nil {
		return nil, fmt.Errorf("drawing proof nonce: %w", err)
	}
	r1 := g.BaseMul(k)
	r2 := g.Mul(B, k)
	e := dleqChallenge(g, r1, r2, A, C)
	return &DLEQProof{E: e, S: k.Add(e.Mul(a))}, nil
}

// VerifyDLEQ recomputes R1 = sG - eA and R2 = sB - eC and checks the challenge.
func VerifyDLEQ(g group.Group, B, C, A group.Point, proof *DLEQProof) bool {
	if proof == nil || proof.E == nil || proof.S == nil || B == nil || C == nil || A == nil {
		return false
	}
	r1 := group.Sub(g, g.BaseMul(proof.S), g.Mul(A, proof.E))
	r2 := group.Sub(g, g.Mul(B, proof.S), g.Mul(C, proof.E))
	return dleqChallenge(g, r1, r2, A, C).Equal(proof.E)
}

func dleqChallenge(g group.Group, points ...group.Point) *group.Scalar {
	h := sha256.New()
	for _, p := range points {
		h.Write(p.Bytes())
	}
	return group.ScalarFromDigest(g, h.Sum(nil))
}
