// Package retry runs operations with bounded exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goliatone/go-verification/core"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
	defaultMaxDelay   = 10 * time.Second
	defaultMultiplier = 2.0
)

type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, delay time.Duration) error
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultConfig is the budget used for provider pull calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries: defaultMaxRetries,
		BaseDelay:  defaultBaseDelay,
		MaxDelay:   defaultMaxDelay,
		Multiplier: defaultMultiplier,
	}
}

// DispatchConfig is the smaller budget used to re-drive a whole webhook.
func DispatchConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   5 * time.Second,
		Multiplier: defaultMultiplier,
	}
}

func FromCoreConfig(cfg core.RetryConfig) Config {
	return Config{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseDelay,
		MaxDelay:   cfg.MaxDelay,
		Multiplier: cfg.Multiplier,
	}
}

// Delay returns the wait before retry attempt k (k >= 1):
// min(base * multiplier^(k-1), max).
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := c.BaseDelay
	if base <= 0 {
		return 0
	}
	multiplier := c.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(base) * math.Pow(multiplier, float64(attempt-1))
	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// ExhaustedError is returned once every attempt failed or a permanent
// error stopped the sequence early.
type ExhaustedError struct {
	Name     string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		name = "operation"
	}
	return fmt.Sprintf("retry: %s failed after %d attempt(s): %v", name, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Kind keeps the structured kind of the last failure visible to callers.
func (e *ExhaustedError) Kind() core.ErrorKind {
	return core.KindOf(e.Last)
}

// Do invokes op up to MaxRetries+1 times. Errors whose kind is not
// retryable end the sequence immediately.
func Do[T any](ctx context.Context, name string, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	if op == nil {
		return zero, fmt.Errorf("retry: %s operation is required", name)
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = waitWithContext
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := cfg.Delay(attempt)
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, delay, lastErr)
			}
			if err := sleep(ctx, delay); err != nil {
				return zero, &ExhaustedError{Name: name, Attempts: attempts, Last: lastErr}
			}
		}
		attempts++
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if !core.IsRetryable(err) {
			break
		}
	}
	return zero, &ExhaustedError{Name: name, Attempts: attempts, Last: lastErr}
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
