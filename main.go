// main.go - In-process walk-through of a note transfer between two holders.
//
// A mint with denominations {1,2,4,8} issues a 4 and a 2 to Alice. Alice hands
// both notes to Bob as a token string. Bob swaps them for fresh notes (checking
// the mint's DLEQ proofs), spends 6, and then tries to spend the same notes
// again, which the mint refuses.
//
// Usage:
//
//	go run . [-curve secp256k1|bls12-377] [-log debug]
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"ecash/internal/ecash"
	"ecash/internal/group"
	"ecash/internal/logging"
	"ecash/internal/metrics"
)

// scenarioResult is what the walk-through observed at each step.
type scenarioResult struct {
	Token          string
	SwappedNotes   int
	FirstSpendErr  error
	SecondSpendErr error
	MismatchErr    error
	AliceBalance   uint64
	Metrics        map[string]interface{}
}

func main() {
	curve := flag.String("curve", "secp256k1", "group backend")
	level := flag.String("log", "info", "log level")
	flag.Parse()

	logger, err := logging.New(*level, "", "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Close()

	g, err := group.ByName(*curve)
	if err != nil {
		logger.Fatal().Err(err).Msg("unknown curve")
	}
	res, err := runScenario(logger.Logger, g)
	if err != nil {
		logger.Fatal().Err(err).Msg("scenario failed")
	}
	logger.Info().
		Err(res.FirstSpendErr).
		Msg("first spend of 6")
	logger.Info().
		AnErr("error", res.SecondSpendErr).
		Bool("double_spend", errors.Is(res.SecondSpendErr, ecash.ErrDoubleSpend)).
		Msg("second spend of 6")
	logger.Info().
		AnErr("error", res.MismatchErr).
		Uint64("alice_balance", res.AliceBalance).
		Msg("swap of 6 for 5")
	logger.Info().Interface("metrics", res.Metrics).Msg("done")
}

func runScenario(log zerolog.Logger, g group.Group) (*scenarioResult, error) {
	keyset, err := ecash.NewKeyset(g, []uint64{1, 2, 4, 8}, nil)
	if err != nil {
		return nil, err
	}
	collector := metrics.NewCollector()
	mint := ecash.NewMint(keyset, ecash.NewMemorySpentSet(),
		ecash.WithLogger(log.With().Str("actor", "mint").Logger()),
		ecash.WithRecorder(collector),
	)
	log.Info().Str("keyset", keyset.ID()).Str("curve", g.Name()).Msg("mint created")

	alice := ecash.NewWallet(g, ecash.WithWalletLogger(log.With().Str("actor", "alice").Logger()))
	if _, err := alice.MintNotes(mint, []uint64{4, 2}); err != nil {
		return nil, fmt.Errorf("alice minting: %w", err)
	}
	res := &scenarioResult{Token: ecash.FormatToken(keyset.ID(), alice.Take())}
	log.Info().Int("token_len", len(res.Token)).Msg("alice handed a token to bob")

	bob := ecash.NewWallet(g, ecash.WithWalletLogger(log.With().Str("actor", "bob").Logger()))
	id, incoming, err := ecash.ParseToken(g, res.Token)
	if err != nil {
		return nil, err
	}
	if id != keyset.ID() {
		return nil, fmt.Errorf("token from keyset %s, mint has %s", id, keyset.ID())
	}
	fresh, err := bob.Receive(mint, incoming)
	if err != nil {
		return nil, fmt.Errorf("bob swapping: %w", err)
	}
	res.SwappedNotes = len(fresh)

	res.FirstSpendErr = bob.SelectAndSpend(mint, 6)
	bob.Add(fresh...)
	res.SecondSpendErr = bob.SelectAndSpend(mint, 6)

	// A swap of 6 for 5 is refused before anything is spent.
	more, err := alice.MintNotes(mint, []uint64{4, 2})
	if err != nil {
		return nil, fmt.Errorf("alice minting: %w", err)
	}
	_, res.MismatchErr = alice.SwapNotes(mint, more, []uint64{4, 1})
	for _, n := range more {
		if err := mint.CheckNote(n); err != nil {
			return nil, fmt.Errorf("note %s unusable after refused swap: %w", n.Fingerprint(), err)
		}
	}

	res.AliceBalance = alice.Balance()
	res.Metrics = collector.Summary()
	return res, nil
}
