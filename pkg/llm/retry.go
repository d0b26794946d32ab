package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig controls retry behavior for model calls. Sleep is
// injectable so tests can run without waiting.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
	IsRetryable func(error) bool
	Sleep       func(time.Duration)
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Second
	}
	if cfg.IsRetryable == nil {
		cfg.IsRetryable = retryableError
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return cfg
}

// delay doubles per attempt up to MaxDelay, plus proportional jitter.
func (cfg RetryConfig) delay(attempt int, r *rand.Rand) time.Duration {
	d := cfg.BaseDelay << uint(attempt)
	if d > cfg.MaxDelay || d <= 0 {
		d = cfg.MaxDelay
	}
	if cfg.Jitter > 0 {
		d += time.Duration(float64(d) * cfg.Jitter * r.Float64())
	}
	return d
}

// Retry invokes fn until it succeeds, the error is not retryable, or
// attempts run out. Context cancellation stops immediately between
// attempts.
func Retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) (Response, error)) (Response, error) {
	cfg = cfg.withDefaults()
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}
		resp, err := fn(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !cfg.IsRetryable(err) {
			break
		}
		if attempt < cfg.MaxAttempts-1 {
			cfg.Sleep(cfg.delay(attempt, r))
		}
	}
	return Response{}, fmt.Errorf("llm retry failed: %w", lastErr)
}

// retryableError treats everything except caller cancellation as
// transient. Provider errors that should not be retried can override
// via RetryConfig.IsRetryable.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
