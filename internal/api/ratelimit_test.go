package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestRateLimiterRefill(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	rl := newRateLimiter(3, 1, time.Second, clock.now)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow())
	}
	assert.False(t, rl.Allow())

	clock.t = clock.t.Add(1500 * time.Millisecond)
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	// the half second left over from the last refill counts
	clock.t = clock.t.Add(500 * time.Millisecond)
	assert.True(t, rl.Allow())

	clock.t = clock.t.Add(time.Hour)
	assert.True(t, rl.Allow())
	assert.Equal(t, 2, rl.Tokens())
}

func TestClientRateLimiterIsPerClient(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewClientRateLimiter(1, 1, time.Minute)
	c.now = clock.now

	assert.True(t, c.Allow("10.0.0.1"))
	assert.False(t, c.Allow("10.0.0.1"))
	assert.True(t, c.Allow("10.0.0.2"))

	clock.t = clock.t.Add(10 * time.Minute)
	assert.Equal(t, 2, c.Prune(5*time.Minute))
	assert.True(t, c.Allow("10.0.0.1"))
}
