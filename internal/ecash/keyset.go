// keyset.go - Key registry: one mint keypair per denomination.
//
// A keyset is immutable after construction and safe for concurrent reads.

package ecash

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"golang.org/x/crypto/hkdf"

	"ecash/internal/group"
)

const keysetInfo = "ecash-keyset"

// KeyPair is the mint key for one denomination. Private never leaves the mint.
type KeyPair struct {
	Denomination uint64
	Private      *group.Scalar
	Public       group.Point
}

// Keyset maps denominations to keypairs.
type Keyset struct {
	group group.Group
	keys  map[uint64]*KeyPair
	id    string
}

// NewKeyset generates a fresh random keypair per denomination.
func NewKeyset(g group.Group, denominations []uint64, r io.Reader) (*Keyset, error) {
	if r == nil {
		r = rand.Reader
	}
	return buildKeyset(g, denominations, func(uint64) io.Reader { return r })
}

// DeriveKeyset derives every key from seed with HKDF-SHA256, so a mint can
// restart with the same keys without storing them individually.
func DeriveKeyset(g group.Group, seed []byte, denominations []uint64) (*Keyset, error) {
	if len(seed) < 32 {
		return nil, fmt.Errorf("keyset seed must be at least 32 bytes, got %d", len(seed))
	}
	return buildKeyset(g, denominations, func(d uint64) io.Reader {
		info := make([]byte, len(keysetInfo)+8)
		copy(info, keysetInfo)
		binary.BigEndian.PutUint64(info[len(keysetInfo):], d)
		return hkdf.New(sha256.New, seed, []byte(g.Name()), info)
	})
}

func buildKeyset(g group.Group, denominations []uint64, source func(uint64) io.Reader) (*Keyset, error) {
	if len(denominations) == 0 {
		return nil, fmt.Errorf("keyset needs at least one denomination")
	}
	ks := &Keyset{group: g, keys: make(map[uint64]*KeyPair, len(denominations))}
	for _, d := range denominations {
		if d == 0 {
			return nil, ErrInvalidDenomination
		}
		if _, dup := ks.keys[d]; dup {
			continue
		}
		k, err := group.RandomScalar(g, source(d))
		if err != nil {
			return nil, fmt.Errorf("generating key for denomination %d: %w", d, err)
		}
		ks.keys[d] = &KeyPair{Denomination: d, Private: k, Public: g.BaseMul(k)}
	}
	ks.id = ks.computeID()
	return ks, nil
}

// computeID hashes the sorted public keys, in the spirit of Cashu keyset ids.
func (ks *Keyset) computeID() string {
	h := sha256.New()
	var buf [8]byte
	for _, d := range ks.Denominations() {
		binary.BigEndian.PutUint64(buf[:], d)
		h.Write(buf[:])
		h.Write(ks.keys[d].Public.Bytes())
	}
	return "00" + hex.EncodeToString(h.Sum(nil)[:7])
}

// Lookup returns the keypair for a denomination. A miss is an expected outcome.
func (ks *Keyset) Lookup(denomination uint64) (*KeyPair, bool) {
	kp, ok := ks.keys[denomination]
	return kp, ok
}

// PublicKey returns the public point for a denomination.
func (ks *Keyset) PublicKey(denomination uint64) (group.Point, bool) {
	kp, ok := ks.keys[denomination]
	if !ok {
		return nil, false
	}
	return kp.Public, true
}

// PublicKeys returns a copy of the denomination -> public key map.
func (ks *Keyset) PublicKeys() map[uint64]group.Point {
	out := make(map[uint64]group.Point, len(ks.keys))
	for d, kp := range ks.keys {
		out[d] = kp.Public
	}
	return out
}

// Denominations returns the configured denominations in ascending order.
func (ks *Keyset) Denominations() []uint64 {
	out := make([]uint64, 0, len(ks.keys))
	for d := range ks.keys {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (ks *Keyset) ID() string         { return ks.id }
func (ks *Keyset) Group() group.Group { return ks.group }
