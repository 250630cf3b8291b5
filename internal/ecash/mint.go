// mint.go - Issuer side: note verification, spending, blind issuance and swap.

package ecash

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ecash/internal/group"
)

// Recorder receives mint events. internal/metrics provides an implementation.
type Recorder interface {
	RecordSpend(denomination uint64)
	RecordRejection(reason string)
	RecordIssue(outputs int, elapsed time.Duration)
	RecordSwap(inputs, outputs int, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordSpend(uint64)                 {}
func (nopRecorder) RecordRejection(string)             {}
func (nopRecorder) RecordIssue(int, time.Duration)     {}
func (nopRecorder) RecordSwap(int, int, time.Duration) {}

// Mint owns the keyset private keys and the spent set.
type Mint struct {
	keyset  *Keyset
	group   group.Group
	spent   SpentSet
	rand    io.Reader
	log     zerolog.Logger
	metrics Recorder
	signers int
}

// MintOption configures a Mint.
type MintOption func(*Mint)

// WithLogger sets the mint logger. The default discards everything.
func WithLogger(l zerolog.Logger) MintOption {
	return func(m *Mint) { m.log = l }
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) MintOption {
	return func(m *Mint) { m.metrics = r }
}

// WithRandom replaces crypto/rand as the source of proof nonces. The reader
// is shared by parallel signers and must be safe for concurrent use.
func WithRandom(r io.Reader) MintOption {
	return func(m *Mint) { m.rand = r }
}

// WithSigners bounds how many outputs are signed in parallel.
func WithSigners(n int) MintOption {
	return func(m *Mint) {
		if n > 0 {
			m.signers = n
		}
	}
}

// NewMint creates a mint over keyset, recording spent secrets in spent.
func NewMint(keyset *Keyset, spent SpentSet, opts ...MintOption) *Mint {
	m := &Mint{
		keyset:  keyset,
		group:   keyset.Group(),
		spent:   spent,
		rand:    rand.Reader,
		log:     zerolog.Nop(),
		metrics: nopRecorder{},
		signers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mint) Keyset() *Keyset { return m.keyset }

// Keys returns the public key for every denomination.
func (m *Mint) Keys() (map[uint64]group.Point, error) {
	return m.keyset.PublicKeys(), nil
}

// verifySignature checks the note against the keyset without touching the spent set.
// Y is recomputed from the secret; a Y that does not match is treated as forged.
func (m *Mint) verifySignature(n Note) error {
	if len(n.Secret) == 0 {
		return ErrEmptySecret
	}
	kp, ok := m.keyset.Lookup(n.Denomination)
	if !ok {
		return ErrUnknownDenomination
	}
	if n.C == nil {
		return ErrSignatureMismatch
	}
	y, err := HashToCurve(m.group, n.Secret)
	if err != nil {
		return err
	}
	if n.Y != nil && !n.Y.Equal(y) {
		return ErrSignatureMismatch
	}
	if !m.group.Mul(y, kp.Private).Equal(n.C) {
		return ErrSignatureMismatch
	}
	return nil
}

// CheckNote reports whether the note would currently verify. It never mutates
// the spent set.
func (m *Mint) CheckNote(n Note) error {
	if err := m.verifySignature(n); err != nil {
		return err
	}
	spent, err := m.spent.Contains(n.Secret)
	if err != nil {
		return fmt.Errorf("checking spent set: %w", err)
	}
	if spent {
		return ErrDoubleSpend
	}
	return nil
}

// SpentStates reports, per secret, whether it has been redeemed.
func (m *Mint) SpentStates(secrets [][]byte) ([]bool, error) {
	out := make([]bool, len(secrets))
	for i, s := range secrets {
		spent, err := m.spent.Contains(s)
		if err != nil {
			return nil, fmt.Errorf("checking spent set: %w", err)
		}
		out[i] = spent
	}
	return out, nil
}

// VerifyAndSpend verifies a single note and marks its secret spent. The
// check-then-insert is one atomic SpentSet operation, so among concurrent
// calls with the same secret at most one succeeds.
func (m *Mint) VerifyAndSpend(n Note) error {
	if err := m.verifySignature(n); err != nil {
		m.reject(n, err)
		return err
	}
	inserted, err := m.spent.InsertIfAbsent(n.Secret)
	if err != nil {
		return fmt.Errorf("recording spent secret: %w", err)
	}
	if !inserted {
		m.reject(n, ErrDoubleSpend)
		return ErrDoubleSpend
	}
	m.metrics.RecordSpend(n.Denomination)
	m.log.Debug().Str("note", n.Fingerprint()).Uint64("denomination", n.Denomination).Msg("note spent")
	return nil
}

// Redeem verifies and spends a batch of notes as one unit: either every note
// is recorded as spent or none is.
func (m *Mint) Redeem(notes []Note) error {
	if err := m.spendInputs(notes); err != nil {
		return err
	}
	m.log.Info().Int("notes", len(notes)).Msg("notes redeemed")
	return nil
}

// spendInputs validates every input, then inserts all secrets in one batch.
func (m *Mint) spendInputs(inputs []Note) error {
	seen := make(map[string]struct{}, len(inputs))
	secrets := make([][]byte, 0, len(inputs))
	for _, n := range inputs {
		if _, dup := seen[string(n.Secret)]; dup {
			m.reject(n, ErrDuplicateInput)
			return ErrDuplicateInput
		}
		seen[string(n.Secret)] = struct{}{}
		if err := m.verifySignature(n); err != nil {
			m.reject(n, err)
			return err
		}
		secrets = append(secrets, n.Secret)
	}
	inserted, err := m.spent.InsertAllIfAbsent(secrets)
	if err != nil {
		return fmt.Errorf("recording spent secrets: %w", err)
	}
	if !inserted {
		m.metrics.RecordRejection(reasonOf(ErrDoubleSpend))
		m.log.Warn().Int("inputs", len(inputs)).Msg("batch rejected: input already spent")
		return ErrDoubleSpend
	}
	for _, n := range inputs {
		m.metrics.RecordSpend(n.Denomination)
	}
	return nil
}

// checkOutputs makes sure every requested denomination can be signed.
func (m *Mint) checkOutputs(outputs []BlindedOutput) error {
	for i, o := range outputs {
		if _, ok := m.keyset.Lookup(o.Denomination); !ok {
			return fmt.Errorf("output %d: %w", i, ErrUnknownDenomination)
		}
		if o.B == nil || o.B.IsIdentity() {
			return fmt.Errorf("output %d: %w", i, ErrInvalidPoint)
		}
	}
	return nil
}

// Sign blind-signs one output.
func (m *Mint) Sign(o BlindedOutput) (BlindSignature, error) {
	kp, ok := m.keyset.Lookup(o.Denomination)
	if !ok {
		return BlindSignature{}, ErrUnknownDenomination
	}
	c, proof, err := BlindSign(m.group, kp, o.B, m.rand)
	if err != nil {
		return BlindSignature{}, err
	}
	return BlindSignature{Denomination: o.Denomination, C: c, Proof: proof}, nil
}

// signAll signs outputs in parallel; results keep request order.
func (m *Mint) signAll(outputs []BlindedOutput) ([]BlindSignature, error) {
	sigs := make([]BlindSignature, len(outputs))
	var eg errgroup.Group
	eg.SetLimit(m.signers)
	for i, o := range outputs {
		eg.Go(func() error {
			sig, err := m.Sign(o)
			if err != nil {
				return fmt.Errorf("signing output %d: %w", i, err)
			}
			sigs[i] = sig
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return sigs, nil
}

// Issue blind-signs outputs without consuming inputs. Whatever the holder paid
// for them is settled outside this package.
func (m *Mint) Issue(outputs []BlindedOutput) ([]BlindSignature, error) {
	start := time.Now()
	if err := m.checkOutputs(outputs); err != nil {
		m.metrics.RecordRejection(reasonOf(err))
		return nil, err
	}
	sigs, err := m.signAll(outputs)
	if err != nil {
		return nil, err
	}
	m.metrics.RecordIssue(len(outputs), time.Since(start))
	m.log.Info().Int("outputs", len(outputs)).Msg("issued blind signatures")
	return sigs, nil
}

// Swap burns inputs and signs outputs of equal total value.
//
// All validation happens before the spent set is touched: value conservation,
// every output denomination, every input signature and duplicate secrets.
// Inputs are then spent as one batch, and only after that are outputs signed.
// A failed swap leaves the spent set unchanged.
func (m *Mint) Swap(inputs []Note, outputs []BlindedOutput) ([]BlindSignature, error) {
	start := time.Now()
	in, err := SumNotes(inputs)
	if err != nil {
		return nil, m.swapFailed(err)
	}
	out, err := SumOutputs(outputs)
	if err != nil {
		return nil, m.swapFailed(err)
	}
	if in != out {
		return nil, m.swapFailed(fmt.Errorf("inputs %d, outputs %d: %w", in, out, ErrValueMismatch))
	}
	if err := m.checkOutputs(outputs); err != nil {
		return nil, m.swapFailed(err)
	}
	if err := m.spendInputs(inputs); err != nil {
		return nil, err
	}

	sigs, err := m.signAll(outputs)
	if err != nil {
		// Inputs are already burnt; only entropy failure can get here.
		m.log.Error().Err(err).Int("inputs", len(inputs)).Msg("signing failed after inputs were spent")
		return nil, err
	}
	m.metrics.RecordSwap(len(inputs), len(outputs), time.Since(start))
	m.log.Info().Int("inputs", len(inputs)).Int("outputs", len(outputs)).Uint64("value", in).Msg("swap completed")
	return sigs, nil
}

func (m *Mint) swapFailed(err error) error {
	m.metrics.RecordRejection(reasonOf(err))
	m.log.Warn().Err(err).Msg("swap rejected")
	return err
}

func (m *Mint) reject(n Note, err error) {
	m.metrics.RecordRejection(reasonOf(err))
	m.log.Warn().Str("note", n.Fingerprint()).Uint64("denomination", n.Denomination).Err(err).Msg("note rejected")
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, ErrDoubleSpend):
		return "double_spend"
	case errors.Is(err, ErrSignatureMismatch):
		return "signature_mismatch"
	case errors.Is(err, ErrUnknownDenomination):
		return "unknown_denomination"
	case errors.Is(err, ErrValueMismatch):
		return "value_mismatch"
	case errors.Is(err, ErrDuplicateInput):
		return "duplicate_input"
	}
	return "invalid"
}
