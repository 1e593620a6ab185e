// Package retry wraps batch-sized database operations with exponential
// backoff for transient faults. Components never implement their own retry;
// they run under an Executor owned by the storage layer, and every attempt
// acquires a fresh pool connection.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// minDelay is the floor applied to every computed backoff delay.
const minDelay = 50 * time.Millisecond

// Config bounds the retry policy.
type Config struct {
	// MaxAttempts is the total number of tries including the first.
	MaxAttempts int
	// BaseDelay is the first retry delay; it doubles per attempt with
	// +/-25% jitter.
	BaseDelay time.Duration
}

// DefaultConfig returns the production retry policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BaseDelay:   200 * time.Millisecond,
	}
}

// Executor retries transient database faults. Safe for concurrent use; the
// backoff state is created per call.
type Executor struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Executor. A nil logger falls back to slog.Default.
func New(cfg Config, logger *slog.Logger) *Executor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{cfg: cfg, logger: logger}
}

// Do runs op, retrying while the error classifies as transient. Permanent
// errors and context cancellation return immediately; on exhaustion the last
// error propagates. name identifies the operation in retry logs.
func (e *Executor) Do(ctx context.Context, name string, op func(context.Context) error) error {
	attempt := 0

	wrapped := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		attempt++
		e.logger.WarnContext(ctx, "retrying transient database fault",
			"op", name,
			"attempt", attempt,
			"max_attempts", e.cfg.MaxAttempts,
			"delay", delay,
			"error", err)
	}

	return backoff.RetryNotify(wrapped, e.newBackOff(ctx), notify)
}

func (e *Executor) newBackOff(ctx context.Context) backoff.BackOffContext {
	// BackOff implementations are stateful; always build a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.BaseDelay
	bo.RandomizationFactor = 0.25
	bo.Multiplier = 2
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // attempts bound the loop, not wall time

	floored := &flooredBackOff{BackOff: bo}
	capped := backoff.WithMaxRetries(floored, uint64(e.cfg.MaxAttempts-1))
	return backoff.WithContext(capped, ctx)
}

// flooredBackOff clamps delays to minDelay so jitter cannot hammer a
// recovering server.
type flooredBackOff struct {
	backoff.BackOff
}

func (f *flooredBackOff) NextBackOff() time.Duration {
	d := f.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if d < minDelay {
		return minDelay
	}
	return d
}
