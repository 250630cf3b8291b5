// ratelimit.go - Token-bucket rate limiting per client address.
package api

import (
	"sync"
	"time"
)

// RateLimiter is a token bucket refilled with refillRate tokens every refillPeriod.
type RateLimiter struct {
	mu           sync.Mutex
	tokens       int
	maxTokens    int
	refillRate   int
	lastRefill   time.Time
	refillPeriod time.Duration
	now          func() time.Time
}

// NewRateLimiter creates a full bucket.
func NewRateLimiter(maxTokens, refillRate int, refillPeriod time.Duration) *RateLimiter {
	return newRateLimiter(maxTokens, refillRate, refillPeriod, time.Now)
}

func newRateLimiter(maxTokens, refillRate int, refillPeriod time.Duration, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		tokens:       maxTokens,
		maxTokens:    maxTokens,
		refillRate:   refillRate,
		lastRefill:   now(),
		refillPeriod: refillPeriod,
		now:          now,
	}
}

// Allow consumes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if periods := int(now.Sub(rl.lastRefill) / rl.refillPeriod); periods > 0 {
		rl.tokens += periods * rl.refillRate
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		// keep the fractional period so slow trickles still refill
		rl.lastRefill = rl.lastRefill.Add(time.Duration(periods) * rl.refillPeriod)
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// Tokens returns the number of tokens left.
func (rl *RateLimiter) Tokens() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.tokens
}

// ClientRateLimiter keeps one bucket per client key.
type ClientRateLimiter struct {
	mu           sync.Mutex
	limiters     map[string]*RateLimiter
	maxTokens    int
	refillRate   int
	refillPeriod time.Duration
	now          func() time.Time
}

// NewClientRateLimiter creates a limiter handing each new client a full bucket.
func NewClientRateLimiter(maxTokens, refillRate int, refillPeriod time.Duration) *ClientRateLimiter {
	return &ClientRateLimiter{
		limiters:     make(map[string]*RateLimiter),
		maxTokens:    maxTokens,
		refillRate:   refillRate,
		refillPeriod: refillPeriod,
		now:          time.Now,
	}
}

// Allow checks if a request from client is allowed.
func (c *ClientRateLimiter) Allow(client string) bool {
	c.mu.Lock()
	limiter, ok := c.limiters[client]
	if !ok {
		limiter = newRateLimiter(c.maxTokens, c.refillRate, c.refillPeriod, c.now)
		c.limiters[client] = limiter
	}
	c.mu.Unlock()

	return limiter.Allow()
}

// Prune forgets clients not seen for at least idle. Their next request starts
// with a full bucket, which is what they would have refilled to anyway.
func (c *ClientRateLimiter) Prune(idle time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for client, l := range c.limiters {
		l.mu.Lock()
		stale := now.Sub(l.lastRefill) >= idle
		l.mu.Unlock()
		if stale {
			delete(c.limiters, client)
			removed++
		}
	}
	return removed
}
