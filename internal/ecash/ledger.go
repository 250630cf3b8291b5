// ledger.go - The mint's record of redeemed secrets (double-spend set).
//
// The mint depends only on the SpentSet interface. MemorySpentSet is the
// in-process implementation; persistent ones live in internal/storage.

package ecash

import (
	"crypto/rand"
	"encoding/binary"
	"sort"
	"sync"

	"github.com/dchest/siphash"
)

// SpentSet records consumed note secrets.
//
// InsertIfAbsent and InsertAllIfAbsent must be atomic with respect to every
// other call: of several concurrent inserts of one secret, exactly one reports
// true. InsertAllIfAbsent inserts all secrets or none.
type SpentSet interface {
	Contains(secret []byte) (bool, error)
	InsertIfAbsent(secret []byte) (bool, error)
	InsertAllIfAbsent(secrets [][]byte) (bool, error)
}

const spentShards = 64

type spentShard struct {
	mu      sync.Mutex
	secrets map[string]struct{}
}

// MemorySpentSet is a concurrent set sharded by a keyed SipHash of the secret.
// The random key keeps shard placement unpredictable to clients.
type MemorySpentSet struct {
	k0, k1 uint64
	shards [spentShards]spentShard
}

// NewMemorySpentSet creates an empty in-memory spent set.
func NewMemorySpentSet() *MemorySpentSet {
	var key [16]byte
	if _, err := rand.Read(key[:]); err != nil {
		panic("ecash: no randomness for spent set key: " + err.Error())
	}
	s := &MemorySpentSet{
		k0: binary.LittleEndian.Uint64(key[:8]),
		k1: binary.LittleEndian.Uint64(key[8:]),
	}
	for i := range s.shards {
		s.shards[i].secrets = make(map[string]struct{})
	}
	return s
}

func (s *MemorySpentSet) shardIndex(secret []byte) int {
	return int(siphash.Hash(s.k0, s.k1, secret) % spentShards)
}

// Contains reports whether secret has been spent.
func (s *MemorySpentSet) Contains(secret []byte) (bool, error) {
	sh := &s.shards[s.shardIndex(secret)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, ok := sh.secrets[string(secret)]
	return ok, nil
}

// InsertIfAbsent adds secret and reports whether this call added it.
func (s *MemorySpentSet) InsertIfAbsent(secret []byte) (bool, error) {
	sh := &s.shards[s.shardIndex(secret)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	key := string(secret)
	if _, ok := sh.secrets[key]; ok {
		return false, nil
	}
	sh.secrets[key] = struct{}{}
	return true, nil
}

// InsertAllIfAbsent adds every secret, or none if any is already present or
// the batch repeats a secret. Shard locks are taken in index order.
func (s *MemorySpentSet) InsertAllIfAbsent(secrets [][]byte) (bool, error) {
	if len(secrets) == 0 {
		return true, nil
	}
	seen := make(map[string]struct{}, len(secrets))
	idx := make([]int, 0, len(secrets))
	for _, secret := range secrets {
		if _, dup := seen[string(secret)]; dup {
			return false, nil
		}
		seen[string(secret)] = struct{}{}
		idx = append(idx, s.shardIndex(secret))
	}
	locked := uniqueSorted(idx)
	for _, i := range locked {
		s.shards[i].mu.Lock()
	}
	defer func() {
		for _, i := range locked {
			s.shards[i].mu.Unlock()
		}
	}()

	for j, secret := range secrets {
		if _, ok := s.shards[idx[j]].secrets[string(secret)]; ok {
			return false, nil
		}
	}
	for j, secret := range secrets {
		s.shards[idx[j]].secrets[string(secret)] = struct{}{}
	}
	return true, nil
}

// Len returns the number of spent secrets.
func (s *MemorySpentSet) Len() int {
	total := 0
	for i := range s.shards {
		s.shards[i].mu.Lock()
		total += len(s.shards[i].secrets)
		s.shards[i].mu.Unlock()
	}
	return total
}

func uniqueSorted(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}
