package ecash

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecash/internal/group"
)

func TestTokenCarriesSpendableNotes(t *testing.T) {
	for _, g := range []group.Group{group.Secp256k1(), group.BLS12377()} {
		t.Run(g.Name(), func(t *testing.T) {
			m := NewMint(testKeyset(t, g), NewMemorySpentSet())
			notes := mintNotes(t, m, 8, 1)

			s := FormatToken(m.Keyset().ID(), notes)
			assert.True(t, strings.HasPrefix(s, "ecashA"))

			id, decoded, err := ParseToken(g, s)
			require.NoError(t, err)
			assert.Equal(t, m.Keyset().ID(), id)
			require.Len(t, decoded, 2)
			for i, n := range decoded {
				assert.Equal(t, notes[i].Denomination, n.Denomination)
				assert.True(t, notes[i].Y.Equal(n.Y), "Y is recomputed from the secret")
				assert.True(t, notes[i].C.Equal(n.C))
			}
			require.NoError(t, m.Redeem(decoded))
		})
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	g := group.Secp256k1()
	for name, s := range map[string]string{
		"no prefix":   "cashuAabc",
		"bad base64":  "ecashA!!!",
		"empty":       "ecashA",
		"truncated":   "ecashA" + base64.RawURLEncoding.EncodeToString(EncodeToken("00aa", nil)[:5]),
		"wrong group": FormatToken("00aa", mintNotes(t, NewMint(testKeyset(t, group.BLS12377()), NewMemorySpentSet()), 1)),
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseToken(g, s)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestDecodeTokenRejectsNoteWithoutSecret(t *testing.T) {
	g := group.Secp256k1()
	m := NewMint(testKeyset(t, g), NewMemorySpentSet())
	note := mintNotes(t, m, 2)[0]
	note.Secret = nil
	_, _, err := DecodeToken(g, EncodeToken("00aa", []Note{note}))
	assert.ErrorIs(t, err, ErrMalformedToken)
}
