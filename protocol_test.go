package main

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecash/internal/ecash"
	"ecash/internal/group"
	"ecash/internal/metrics"
)

func TestTransferScenario(t *testing.T) {
	for _, g := range []group.Group{group.Secp256k1(), group.BLS12377()} {
		t.Run(g.Name(), func(t *testing.T) {
			res, err := runScenario(zerolog.Nop(), g)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(res.Token, "ecashA"))
			assert.Equal(t, 2, res.SwappedNotes)
			assert.NoError(t, res.FirstSpendErr)
			assert.ErrorIs(t, res.SecondSpendErr, ecash.ErrDoubleSpend)
			assert.ErrorIs(t, res.MismatchErr, ecash.ErrValueMismatch)
			assert.Equal(t, uint64(6), res.AliceBalance, "refused swap keeps alice's notes")

			counters := res.Metrics["counters"].(map[string]int64)
			assert.Equal(t, int64(1), counters[metrics.MetricSwaps])
			assert.Equal(t, int64(1), counters[metrics.MetricRejections+"{reason=double_spend}"])
			assert.Equal(t, int64(1), counters[metrics.MetricRejections+"{reason=value_mismatch}"])
		})
	}
}
