// Package routing drives remote calls through retries.
//
// This package contains:
//   - RetryConfig and Backoff: exponential delay with jitter and Retry-After hints
//   - IsRetryableError: transient vs permanent classification
//   - Retrier: bounded retry loop around a caller supplied operation
package routing

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/vietddude/gqlgate/internal/core/metrics"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	JitterFactor float64       `yaml:"jitter_factor"` // 0.1 = ±10%
	Enabled      bool          `yaml:"enabled"`
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  5,
	BaseDelay:    100 * time.Millisecond,
	MaxDelay:     30 * time.Second,
	JitterFactor: 0.1,
	Enabled:      true,
}

// Trace describes what happened during one Do call.
type Trace struct {
	Attempts  int
	LastError error
	Delays    []time.Duration
}

// Retrier executes operations with exponential backoff. It keeps no state
// between calls besides its configuration.
type Retrier struct {
	config RetryConfig
	log    *slog.Logger
	random func() float64
	sleep  func(ctx context.Context, d time.Duration) error
}

// RetrierOption customizes a Retrier.
type RetrierOption func(*Retrier)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) RetrierOption {
	return func(r *Retrier) { r.log = log }
}

// WithRandom overrides the jitter source. f must return values in [0, 1).
func WithRandom(f func() float64) RetrierOption {
	return func(r *Retrier) { r.random = f }
}

// WithSleep overrides how the retrier waits between attempts.
func WithSleep(f func(ctx context.Context, d time.Duration) error) RetrierOption {
	return func(r *Retrier) { r.sleep = f }
}

// NewRetrier creates a Retrier. MaxAttempts below one is raised to one and a
// jitter factor outside [0, 1] is clamped.
func NewRetrier(config RetryConfig, opts ...RetrierOption) *Retrier {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.JitterFactor < 0 {
		config.JitterFactor = 0
	}
	if config.JitterFactor > 1 {
		config.JitterFactor = 1
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultRetryConfig.MaxDelay
	}

	r := &Retrier{
		config: config,
		log:    slog.Default(),
		random: rand.Float64,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the effective configuration.
func (r *Retrier) Config() RetryConfig {
	return r.config
}

// Do runs op until it succeeds, fails permanently, or MaxAttempts is reached.
// The returned error is the last error from op, unwrapped, or ctx.Err() if
// the context ends during a backoff.
func (r *Retrier) Do(ctx context.Context, name string, op func(ctx context.Context) error) (Trace, error) {
	var trace Trace

	if !r.config.Enabled {
		trace.Attempts = 1
		trace.LastError = op(ctx)
		return trace, trace.LastError
	}

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		trace.Attempts = attempt

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				r.log.Info("Operation succeeded after retries", "operation", name, "attempts", attempt)
			}
			return trace, nil
		}
		trace.LastError = err

		// The caller gave up; another attempt could not succeed.
		if ctx.Err() != nil || !IsRetryableError(err) {
			return trace, err
		}

		if attempt == r.config.MaxAttempts {
			r.log.Error("Operation failed after retries",
				"operation", name,
				"attempts", attempt,
				"error", err,
			)
			return trace, err
		}

		delay := r.config.Backoff(attempt, err, r.random)
		trace.Delays = append(trace.Delays, delay)
		metrics.RetriesTotal.Inc()

		r.log.Warn("Attempt failed, retrying",
			"operation", name,
			"attempt", attempt,
			"max_attempts", r.config.MaxAttempts,
			"delay", delay,
			"error", err,
		)

		if err := r.sleep(ctx, delay); err != nil {
			trace.LastError = err
			return trace, err
		}
	}

	return trace, trace.LastError
}

// ExecuteWithRetry runs op through r and returns its result.
func ExecuteWithRetry[T any](
	ctx context.Context,
	r *Retrier,
	name string,
	op func(ctx context.Context) (T, error),
) (T, error) {
	var result T
	_, err := r.Do(ctx, name, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
