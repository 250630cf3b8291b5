// cache.go - LRU front for a spent set.
package storage

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"ecash/internal/ecash"
)

// CachedSpentSet answers Contains for recently spent secrets from memory.
// Only positive answers are cached; a secret never leaves the spent set, so a
// cached hit can not go stale. Inserts always go to the backing set.
type CachedSpentSet struct {
	backing ecash.SpentSet
	recent  *lru.Cache
}

// NewCachedSpentSet wraps backing with an LRU of the given size.
func NewCachedSpentSet(backing ecash.SpentSet, size int) (*CachedSpentSet, error) {
	recent, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create spent cache: %w", err)
	}
	return &CachedSpentSet{backing: backing, recent: recent}, nil
}

// Contains reports whether secret has been spent.
func (c *CachedSpentSet) Contains(secret []byte) (bool, error) {
	if c.recent.Contains(string(secret)) {
		return true, nil
	}
	found, err := c.backing.Contains(secret)
	if err == nil && found {
		c.recent.Add(string(secret), struct{}{})
	}
	return found, err
}

// InsertIfAbsent adds secret and reports whether this call added it.
func (c *CachedSpentSet) InsertIfAbsent(secret []byte) (bool, error) {
	if c.recent.Contains(string(secret)) {
		return false, nil
	}
	ok, err := c.backing.InsertIfAbsent(secret)
	if err == nil {
		c.recent.Add(string(secret), struct{}{})
	}
	return ok, err
}

// InsertAllIfAbsent adds every secret or none.
func (c *CachedSpentSet) InsertAllIfAbsent(secrets [][]byte) (bool, error) {
	for _, secret := range secrets {
		if c.recent.Contains(string(secret)) {
			return false, nil
		}
	}
	ok, err := c.backing.InsertAllIfAbsent(secrets)
	if err == nil && ok {
		for _, secret := range secrets {
			c.recent.Add(string(secret), struct{}{})
		}
	}
	return ok, err
}
