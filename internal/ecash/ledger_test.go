package ecash

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySpentSetInsertIfAbsent(t *testing.T) {
	s := NewMemorySpentSet()
	ok, err := s.InsertIfAbsent([]byte("a"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.InsertIfAbsent([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	present, err := s.Contains([]byte("a"))
	require.NoError(t, err)
	assert.True(t, present)
	present, err = s.Contains([]byte("b"))
	require.NoError(t, err)
	assert.False(t, present)
	assert.Equal(t, 1, s.Len())
}

func TestMemorySpentSetBatchIsAllOrNothing(t *testing.T) {
	s := NewMemorySpentSet()
	_, err := s.InsertIfAbsent([]byte("c"))
	require.NoError(t, err)

	ok, err := s.InsertAllIfAbsent([][]byte{[]byte("a"), []byte("b"), []byte("c")})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len(), "failed batch must not insert anything")

	ok, err = s.InsertAllIfAbsent([][]byte{[]byte("a"), []byte("a")})
	require.NoError(t, err)
	assert.False(t, ok, "a batch repeating a secret is rejected")
	assert.Equal(t, 1, s.Len())

	ok, err = s.InsertAllIfAbsent([][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, s.Len())

	ok, err = s.InsertAllIfAbsent(nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemorySpentSetConcurrentSingleWinner(t *testing.T) {
	s := NewMemorySpentSet()
	const workers = 64
	for round := 0; round < 20; round++ {
		secret := []byte(fmt.Sprintf("secret-%d", round))
		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				var ok bool
				var err error
				if i%2 == 0 {
					ok, err = s.InsertAllIfAbsent([][]byte{secret, []byte(fmt.Sprintf("filler-%d-%d", round, i))})
				} else {
					ok, err = s.InsertIfAbsent(secret)
				}
				if err == nil && ok {
					atomic.AddInt32(&wins, 1)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins, "round %d", round)
	}
}
