// Package infra provides shared infrastructure components used across
// the gateway: caching, rate limiting, and HTTP utilities.
package infra

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// --- In-memory TTL cache ---

// CacheEntry holds a cached value with expiration.
type CacheEntry struct {
	Value     any
	ExpiresAt time.Time
}

// Cache is a thread-safe in-memory cache with TTL. Expired entries are
// purged lazily on access and on size queries.
type Cache struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a cache with the given default TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]CacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock replaces the cache's time source. Intended for tests.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Get retrieves a value. Returns nil, false if not found or expired;
// an expired entry is deleted on the way out.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.ExpiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.Value, true
}

// Set stores a value with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = CacheEntry{Value: value, ExpiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Invalidate removes a key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Flush removes all entries.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.entries = make(map[string]CacheEntry)
	c.mu.Unlock()
}

// Size purges expired entries and returns the number of live ones.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, v := range c.entries {
		if now.After(v.ExpiresAt) {
			delete(c.entries, k)
		}
	}
	return len(c.entries)
}

// CacheKey builds a deterministic cache key from an endpoint and its query
// parameters, sorted lexicographically so equivalent requests collide.
func CacheKey(endpoint string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(endpoint)
	for _, k := range keys {
		b.WriteByte(':')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// --- Rate limiter ---

// RateLimiter is a token bucket allowing maxTokens acquisitions per window.
// Tokens refill proportionally to elapsed time, capped at maxTokens.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  int
	window     time.Duration
	lastRefill time.Time
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a rate limiter that allows maxTokens requests per
// window. The bucket starts full so an initial burst is admitted.
func NewRateLimiter(maxTokens int, window time.Duration) *RateLimiter {
	if maxTokens < 1 {
		maxTokens = 1
	}
	return &RateLimiter{
		tokens:     float64(maxTokens),
		maxTokens:  maxTokens,
		window:     window,
		lastRefill: time.Now(),
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Wait blocks until a token is available or the context is cancelled.
// When the bucket is empty the caller sleeps window/maxTokens and re-polls;
// there is no fairness queue, so a later caller may win the next token.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		if rl.TryAcquire() {
			return nil
		}
		if err := rl.sleep(ctx, rl.window/time.Duration(rl.maxTokens)); err != nil {
			return err
		}
	}
}

// TryAcquire consumes a token if one is available, without blocking.
func (rl *RateLimiter) TryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// Tokens reports the current token count after a refill. Intended for tests.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// SetClock replaces the limiter's time source. Intended for tests.
func (rl *RateLimiter) SetClock(now func() time.Time) {
	rl.mu.Lock()
	rl.now = now
	rl.lastRefill = now()
	rl.mu.Unlock()
}

// refill adds tokens proportional to elapsed time. Must hold mu.
func (rl *RateLimiter) refill() {
	now := rl.now()
	elapsed := now.Sub(rl.lastRefill)
	if elapsed <= 0 {
		return
	}
	rl.tokens += elapsed.Seconds() / rl.window.Seconds() * float64(rl.maxTokens)
	if rl.tokens > float64(rl.maxTokens) {
		rl.tokens = float64(rl.maxTokens)
	}
	rl.lastRefill = now
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
