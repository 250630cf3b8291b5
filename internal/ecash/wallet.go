// wallet.go - Holder side: blinding outputs, checking DLEQ proofs, storing and spending notes.

package ecash

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"math/bits"
	"sync"

	"github.com/rs/zerolog"

	"ecash/internal/group"
)

// Issuer is the mint as seen by a wallet. *Mint satisfies it in-process and
// api.Client over HTTP.
type Issuer interface {
	Keys() (map[uint64]group.Point, error)
	Issue(outputs []BlindedOutput) ([]BlindSignature, error)
	Swap(inputs []Note, outputs []BlindedOutput) ([]BlindSignature, error)
	Redeem(notes []Note) error
}

// PendingOutput is everything the wallet keeps while a blinded output is at the mint.
type PendingOutput struct {
	Denomination uint64
	Secret       []byte
	Y            group.Point
	Blinded      *BlindedMessage
}

// Request returns the part of the output sent to the mint.
func (p PendingOutput) Request() BlindedOutput {
	return BlindedOutput{Denomination: p.Denomination, B: p.Blinded.B}
}

// Wallet stores notes in the order they were received.
type Wallet struct {
	group group.Group
	rand  io.Reader
	log   zerolog.Logger

	mu    sync.Mutex
	notes []Note
}

// WalletOption configures a Wallet.
type WalletOption func(*Wallet)

// WithWalletLogger sets the wallet logger.
func WithWalletLogger(l zerolog.Logger) WalletOption {
	return func(w *Wallet) { w.log = l }
}

// WithWalletRandom replaces crypto/rand for secrets and blinding factors.
func WithWalletRandom(r io.Reader) WalletOption {
	return func(w *Wallet) { w.rand = r }
}

// NewWallet creates an empty wallet for the given group.
func NewWallet(g group.Group, opts ...WalletOption) *Wallet {
	w := &Wallet{group: g, rand: rand.Reader, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// PrepareOutputs creates a fresh secret and blinding for each denomination.
func (w *Wallet) PrepareOutputs(denominations []uint64) ([]PendingOutput, []BlindedOutput, error) {
	pending := make([]PendingOutput, 0, len(denominations))
	requests := make([]BlindedOutput, 0, len(denominations))
	for _, d := range denominations {
		secret, err := NewSecret(w.rand)
		if err != nil {
			return nil, nil, err
		}
		y, err := HashToCurve(w.group, secret)
		if err != nil {
			return nil, nil, err
		}
		blinded, err := Blind(w.group, y, w.rand)
		if err != nil {
			return nil, nil, err
		}
		p := PendingOutput{Denomination: d, Secret: secret, Y: y, Blinded: blinded}
		pending = append(pending, p)
		requests = append(requests, p.Request())
	}
	return pending, requests, nil
}

// Finish checks every DLEQ proof against the published key and unblinds the
// signatures into notes. Any bad proof fails the whole batch; nothing is stored.
func (w *Wallet) Finish(keys map[uint64]group.Point, pending []PendingOutput, sigs []BlindSignature) ([]Note, error) {
	if len(sigs) != len(pending) {
		return nil, fmt.Errorf("expected %d signatures, got %d: %w", len(pending), len(sigs), ErrMalformedResponse)
	}
	notes := make([]Note, 0, len(pending))
	for i, p := range pending {
		sig := sigs[i]
		if sig.Denomination != p.Denomination || sig.C == nil {
			return nil, fmt.Errorf("signature %d: %w", i, ErrMalformedResponse)
		}
		k, ok := keys[p.Denomination]
		if !ok {
			return nil, fmt.Errorf("signature %d: %w", i, ErrUnknownDenomination)
		}
		if !VerifyDLEQ(w.group, p.Blinded.B, sig.C, k, sig.Proof) {
			w.log.Error().Int("index", i).Uint64("denomination", p.Denomination).Msg("mint returned an invalid DLEQ proof")
			return nil, fmt.Errorf("signature %d: %w", i, ErrProofInvalid)
		}
		c, err := Unblind(w.group, sig.C, p.Blinded.R, k)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		notes = append(notes, Note{Denomination: p.Denomination, Secret: p.Secret, Y: p.Y, C: c})
	}
	return notes, nil
}

// MintNotes obtains freshly issued notes of the given denominations.
func (w *Wallet) MintNotes(iss Issuer, denominations []uint64) ([]Note, error) {
	return w.exchange(iss, denominations, func(outputs []BlindedOutput) ([]BlindSignature, error) {
		return iss.Issue(outputs)
	})
}

// SwapNotes trades inputs for new notes of the given denominations.
func (w *Wallet) SwapNotes(iss Issuer, inputs []Note, denominations []uint64) ([]Note, error) {
	return w.exchange(iss, denominations, func(outputs []BlindedOutput) ([]BlindSignature, error) {
		return iss.Swap(inputs, outputs)
	})
}

// Receive takes notes handed over by someone else and swaps them for fresh
// ones of the same denominations, so the sender can no longer spend them.
func (w *Wallet) Receive(iss Issuer, incoming []Note) ([]Note, error) {
	denominations := make([]uint64, len(incoming))
	for i, n := range incoming {
		denominations[i] = n.Denomination
	}
	return w.SwapNotes(iss, incoming, denominations)
}

func (w *Wallet) exchange(iss Issuer, denominations []uint64, call func([]BlindedOutput) ([]BlindSignature, error)) ([]Note, error) {
	keys, err := iss.Keys()
	if err != nil {
		return nil, fmt.Errorf("fetching mint keys: %w", err)
	}
	pending, outputs, err := w.PrepareOutputs(denominations)
	if err != nil {
		return nil, err
	}
	sigs, err := call(outputs)
	if err != nil {
		return nil, err
	}
	notes, err := w.Finish(keys, pending, sigs)
	if err != nil {
		return nil, err
	}
	w.Add(notes...)
	w.log.Info().Int("notes", len(notes)).Msg("stored new notes")
	return notes, nil
}

// SelectAndSpend picks notes in stored order until their sum reaches amount.
// The sum must hit amount exactly; there is no change. The selected notes are
// redeemed as one batch and removed only if the mint accepts all of them.
func (w *Wallet) SelectAndSpend(iss Issuer, amount uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var selected []Note
	var sum, carry uint64
	for _, n := range w.notes {
		if sum >= amount {
			break
		}
		selected = append(selected, n)
		sum, carry = bits.Add64(sum, n.Denomination, 0)
		if carry != 0 {
			return fmt.Errorf("selection for amount %d overflows: %w", amount, ErrValueMismatch)
		}
	}
	if sum != amount {
		return fmt.Errorf("selected %d for amount %d: %w", sum, amount, ErrValueMismatch)
	}
	if err := iss.Redeem(selected); err != nil {
		w.log.Warn().Err(err).Uint64("amount", amount).Msg("spend rejected")
		return err
	}

	kept := w.notes[:0:0]
	for _, n := range w.notes {
		if !containsSecret(selected, n.Secret) {
			kept = append(kept, n)
		}
	}
	w.notes = kept
	w.log.Info().Uint64("amount", amount).Int("notes", len(selected)).Msg("spent notes")
	return nil
}

func containsSecret(notes []Note, secret []byte) bool {
	for _, n := range notes {
		if bytes.Equal(n.Secret, secret) {
			return true
		}
	}
	return false
}

// Add appends notes to the wallet.
func (w *Wallet) Add(notes ...Note) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notes = append(w.notes, notes...)
}

// Notes returns a copy of the stored notes.
func (w *Wallet) Notes() []Note {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Note(nil), w.notes...)
}

// Take removes and returns all notes, e.g. to hand them to another holder.
func (w *Wallet) Take() []Note {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.notes
	w.notes = nil
	return out
}

// Balance is the total value of stored notes.
func (w *Wallet) Balance() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	var total uint64
	for _, n := range w.notes {
		total += n.Denomination
	}
	return total
}
