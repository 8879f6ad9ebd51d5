// Package ratelimit paces simulated transfers with a token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a token bucket measured in bytes.
// It allows bursts up to maxTokens, then refills at refillRate tokens/second.
type RateLimiter struct {
	tokens     float64   // Current number of tokens; negative while in debt
	maxTokens  float64   // Maximum bucket capacity
	refillRate float64   // Tokens added per second
	lastRefill time.Time // Last time tokens were refilled
	mu         sync.Mutex
}

// NewRateLimiter creates a rate limiter with an empty bucket, so the first
// chunk of a transfer is paced like the others.
//
// Parameters:
//   - bytesPerSecond: Rate at which tokens are added
//   - burstSize: Maximum tokens that can accumulate while idle
func NewRateLimiter(bytesPerSecond float64, burstSize float64) *RateLimiter {
	return &RateLimiter{
		maxTokens:  burstSize,
		refillRate: bytesPerSecond,
		lastRefill: time.Now(),
	}
}

// WaitN blocks until n tokens were paid for or ctx is cancelled.
// n may exceed the burst size: the bucket goes into debt and WaitN sleeps
// until it is repaid. Tokens taken by a cancelled wait are not returned.
func (rl *RateLimiter) WaitN(ctx context.Context, n float64) error {
	wait := rl.reserve(n)
	if wait <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// reserve takes n tokens and returns how long until the bucket is out of debt.
func (rl *RateLimiter) reserve(n float64) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill(time.Now())
	rl.tokens -= n
	if rl.tokens >= 0 {
		return 0
	}
	return time.Duration(-rl.tokens / rl.refillRate * float64(time.Second))
}

// refill adds tokens for the time elapsed since the last refill. mu must be held.
func (rl *RateLimiter) refill(now time.Time) {
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now
}

// GetCurrentTokens returns the current number of tokens (for testing/debugging).
func (rl *RateLimiter) GetCurrentTokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill(time.Now())
	return rl.tokens
}
