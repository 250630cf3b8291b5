package storage

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecash/internal/ecash"
	"ecash/internal/group"
)

func openTest(t *testing.T, inMemory bool) *BadgerSpentSet {
	t.Helper()
	dir := ""
	if !inMemory {
		dir = t.TempDir()
	}
	s, err := OpenBadger(dir, inMemory, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadgerSpentSet(t *testing.T) {
	s := openTest(t, true)

	ok, err := s.InsertIfAbsent([]byte("a"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.InsertIfAbsent([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.InsertAllIfAbsent([][]byte{[]byte("b"), []byte("a")})
	require.NoError(t, err)
	assert.False(t, ok)
	found, err := s.Contains([]byte("b"))
	require.NoError(t, err)
	assert.False(t, found, "failed batch must not write")

	ok, err = s.InsertAllIfAbsent([][]byte{[]byte("b"), []byte("b")})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.InsertAllIfAbsent([][]byte{[]byte("b"), []byte("c")})
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, s.Ping())
}

func TestBadgerSpentSetSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenBadger(dir, false, zerolog.Nop())
	require.NoError(t, err)
	ok, err := s.InsertIfAbsent([]byte("persisted"))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.Close())
	assert.Error(t, s.Ping())

	s, err = OpenBadger(dir, false, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	found, err := s.Contains([]byte("persisted"))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestBadgerConcurrentSingleWinner(t *testing.T) {
	s := openTest(t, true)
	for round := 0; round < 5; round++ {
		secret := []byte(fmt.Sprintf("contended-%d", round))
		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := s.InsertIfAbsent(secret)
				if err == nil && ok {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)
	}
}

func TestCachedSpentSet(t *testing.T) {
	backing := ecash.NewMemorySpentSet()
	c, err := NewCachedSpentSet(backing, 2)
	require.NoError(t, err)

	ok, err := c.InsertIfAbsent([]byte("x"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.InsertIfAbsent([]byte("x"))
	require.NoError(t, err)
	assert.False(t, ok)

	// spent behind the cache's back
	_, err = backing.InsertIfAbsent([]byte("y"))
	require.NoError(t, err)
	found, err := c.Contains([]byte("y"))
	require.NoError(t, err)
	assert.True(t, found)

	ok, err = c.InsertAllIfAbsent([][]byte{[]byte("z"), []byte("y")})
	require.NoError(t, err)
	assert.False(t, ok)
	found, err = c.Contains([]byte("z"))
	require.NoError(t, err)
	assert.False(t, found)

	_, err = NewCachedSpentSet(backing, 0)
	assert.Error(t, err)
}

func TestMintOverBadger(t *testing.T) {
	g := group.Secp256k1()
	ks, err := ecash.DeriveKeyset(g, make([]byte, 32), []uint64{1, 2, 4})
	require.NoError(t, err)
	spent, err := NewCachedSpentSet(openTest(t, false), 16)
	require.NoError(t, err)
	m := ecash.NewMint(ks, spent)

	w := ecash.NewWallet(g)
	_, err = w.MintNotes(m, []uint64{4, 2, 1})
	require.NoError(t, err)
	notes := w.Notes()

	_, err = w.SwapNotes(m, notes[:2], []uint64{2, 2, 2})
	require.NoError(t, err)
	assert.ErrorIs(t, m.VerifyAndSpend(notes[0]), ecash.ErrDoubleSpend)
	assert.NoError(t, m.VerifyAndSpend(notes[2]))
}
