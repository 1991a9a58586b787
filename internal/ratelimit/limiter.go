// Package ratelimit provides per-key token bucket rate limiting for MCP tools.
package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// ErrRateLimited matches every *LimitError.
var ErrRateLimited = errors.New("rate limit exceeded")

// LimitError reports a rejected call and how long until a token is available.
type LimitError struct {
	Tool       string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	if e.RetryAfter <= 0 {
		return fmt.Sprintf("rate limit exceeded for %s, please try again shortly", e.Tool)
	}
	return fmt.Sprintf("rate limit exceeded for %s, retry in %s", e.Tool, e.RetryAfter.Round(time.Millisecond))
}

// Is reports whether target is ErrRateLimited.
func (e *LimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// Limit is a token bucket configuration.
type Limit struct {
	Rate  float64 // tokens per second
	Burst int     // max burst size (also initial token count)
}

// Limiter implements a per-key token bucket rate limiter.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   Limit
	nowFunc func() time.Time // injectable clock for testing
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		limit:   Limit{Rate: rate, Burst: burst},
		nowFunc: time.Now,
	}
}

// Limit returns the limiter's configuration.
func (l *Limiter) Limit() Limit {
	return l.limit
}

// Allow reports whether a request for key may proceed, consuming a token
// if so.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.Reserve(key)
	return ok
}

// Reserve is Allow that also reports, on rejection, how long until the next
// token. The wait is zero when the bucket never refills.
func (l *Limiter) Reserve(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	b := l.refill(key, now)

	if b.tokens >= 1.0 {
		b.tokens--
		return true, 0
	}
	if l.limit.Rate <= 0 {
		return false, 0
	}
	wait := (1.0 - b.tokens) / l.limit.Rate
	return false, time.Duration(wait * float64(time.Second)).Round(time.Microsecond)
}

// refill tops up key's bucket for the time elapsed since its last check.
// Caller must hold l.mu.
func (l *Limiter) refill(key string, now time.Time) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.limit.Burst), lastCheck: now}
		l.buckets[key] = b
		return b
	}

	if elapsed := now.Sub(b.lastCheck).Seconds(); elapsed > 0 {
		b.tokens = math.Min(b.tokens+l.limit.Rate*elapsed, float64(l.limit.Burst))
		b.lastCheck = now
	}
	return b
}

// DefaultToolLimits are the limits applied to the rendezvous MCP tools.
// Simulation is the only expensive call and gets the tightest budget.
var DefaultToolLimits = map[string]Limit{
	"rendezvous_derive":   {Rate: 1.0, Burst: 10},        // 60/minute
	"rendezvous_match":    {Rate: 30.0 / 60.0, Burst: 5}, // 30/minute
	"rendezvous_simulate": {Rate: 5.0 / 60.0, Burst: 2},  // 5/minute
	"rendezvous_history":  {Rate: 1.0, Burst: 10},        // 60/minute
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates one limiter per entry in DefaultToolLimits.
func NewToolLimiters() ToolLimiters {
	limiters := make(ToolLimiters, len(DefaultToolLimits))
	for tool, lim := range DefaultToolLimits {
		limiters[tool] = NewLimiter(lim.Rate, lim.Burst)
	}
	return limiters
}

// CheckLimit returns a *LimitError when toolName is over its limit.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}

	if allowed, wait := limiter.Reserve(toolName); !allowed {
		return &LimitError{Tool: toolName, RetryAfter: wait}
	}
	return nil
}
