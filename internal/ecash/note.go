// note.go - Holder-side token and value arithmetic.

package ecash

import (
	"crypto/sha256"
	"encoding/hex"
	"math/bits"

	"ecash/internal/group"
)

// Note is a signed token: secret, its curve point Y and the mint signature C = k*Y.
// Two notes are the same note iff their secrets are equal.
type Note struct {
	Denomination uint64
	Secret       []byte
	Y            group.Point
	C            group.Point
}

// Fingerprint is a short, non-secret identifier safe to log.
func (n Note) Fingerprint() string {
	h := sha256.Sum256(n.Secret)
	return hex.EncodeToString(h[:6])
}

// BlindedOutput asks the mint for a signature of the given denomination on B.
type BlindedOutput struct {
	Denomination uint64
	B            group.Point
}

// BlindSignature is the mint's answer to one BlindedOutput.
type BlindSignature struct {
	Denomination uint64
	C            group.Point
	Proof        *DLEQProof
}

// SumNotes adds note denominations, failing on overflow.
func SumNotes(notes []Note) (uint64, error) {
	var total, carry uint64
	for _, n := range notes {
		total, carry = bits.Add64(total, n.Denomination, 0)
		if carry != 0 {
			return 0, ErrValueMismatch
		}
	}
	return total, nil
}

// SumOutputs adds requested denominations, failing on overflow.
func SumOutputs(outputs []BlindedOutput) (uint64, error) {
	var total, carry uint64
	for _, o := range outputs {
		total, carry = bits.Add64(total, o.Denomination, 0)
		if carry != 0 {
			return 0, ErrValueMismatch
		}
	}
	return total, nil
}
