// errors.go - Error taxonomy shared by the mint and wallet.

package ecash

import (
	"errors"

	"ecash/internal/group"
)

var (
	ErrInvalidScalar = group.ErrInvalidScalar
	ErrInvalidPoint  = group.ErrInvalidPoint
	ErrEntropy       = group.ErrEntropy

	// ErrUnknownDenomination means the keyset has no key for the requested value.
	ErrUnknownDenomination = errors.New("unknown denomination")
	// ErrInvalidDenomination rejects zero-valued denominations.
	ErrInvalidDenomination = errors.New("invalid denomination")
	// ErrSignatureMismatch means C != k*Y for the note's denomination.
	ErrSignatureMismatch = errors.New("signature mismatch")
	// ErrDoubleSpend means the secret is already in the spent set.
	ErrDoubleSpend = errors.New("note already spent")
	// ErrDuplicateInput means one request carries the same secret twice.
	ErrDuplicateInput = errors.New("duplicate input secret")
	// ErrValueMismatch means input and output amounts differ, or a sum overflowed.
	ErrValueMismatch = errors.New("value mismatch")
	// ErrProofInvalid means a DLEQ proof did not verify; the signature must not be used.
	ErrProofInvalid = errors.New("invalid DLEQ proof")
	// ErrDegenerate means a point combination produced the identity.
	ErrDegenerate = errors.New("degenerate point")
	// ErrMalformedResponse means the mint's answer does not line up with the request.
	ErrMalformedResponse = errors.New("malformed mint response")
	// ErrEmptySecret rejects notes without a secret.
	ErrEmptySecret = errors.New("empty secret")
)

// IsNoteRejection reports whether err is one of the reasons a note is refused.
// Callers exposing results to holders should not distinguish between them.
func IsNoteRejection(err error) bool {
	return errors.Is(err, ErrSignatureMismatch) ||
		errors.Is(err, ErrDoubleSpend) ||
		errors.Is(err, ErrDuplicateInput) ||
		errors.Is(err, ErrEmptySecret)
}
