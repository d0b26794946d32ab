package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// RateLimitError represents a provider rate limit response.
type RateLimitError struct {
	Provider string
	Message  string
}

func (e RateLimitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "rate limit"
}

// IsRateLimit reports whether the error is a RateLimitError.
func IsRateLimit(err error) bool {
	var rl RateLimitError
	return errors.As(err, &rl)
}

// ErrCircuitOpen is returned by callers that consult Allow while the
// breaker is cooling down.
var ErrCircuitOpen = errors.New("circuit open: provider rate limited")

// CircuitBreaker shields a provider after consecutive rate limit
// failures. Non-rate-limit errors do not trip it. After the cooldown
// the next call is allowed through as a probe; its outcome closes or
// re-opens the circuit.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	strikes   int
	openUntil time.Time
	now       func() time.Time
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a call may proceed.
func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openUntil.IsZero() {
		return true
	}
	if c.now().Before(c.openUntil) {
		return false
	}
	// Cooldown elapsed: let one probe through. Strikes stay at the
	// threshold so a single failure re-opens immediately.
	c.openUntil = time.Time{}
	c.strikes = c.threshold - 1
	return true
}

// Record feeds a call outcome into the breaker.
func (c *CircuitBreaker) Record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.strikes = 0
		c.openUntil = time.Time{}
		return
	}
	if !IsRateLimit(err) {
		return
	}
	c.strikes++
	if c.strikes >= c.threshold {
		c.openUntil = c.now().Add(c.cooldown)
	}
}

// State describes the breaker for logs.
func (c *CircuitBreaker) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.openUntil.IsZero() && c.now().Before(c.openUntil) {
		return fmt.Sprintf("open until %s", c.openUntil.Format(time.RFC3339))
	}
	return "closed"
}
