package ldap

import (
	"context"
	"log/slog"
	"time"
)

// Policy bounds the retry behavior of directory operations.
type Policy struct {
	MaxAttempts int           // Attempts per operation, >= 1
	BaseDelay   time.Duration // Backoff unit; grows linearly with the attempt number
	MaxDelay    time.Duration // Backoff ceiling
}

// DefaultPolicy mirrors the portal's deployment defaults: three attempts,
// two-second backoff unit, thirty-second ceiling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Backoff returns the delay taken after failed attempt n (1-based).
// There is no delay before the first attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay * time.Duration(attempt)
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Executor runs directory operations with endpoint failover: every attempt
// draws a fresh endpoint from the selector, and transient failures back off
// before the next draw. Non-retryable errors (malformed arguments, missing
// principals, authentication rejections) propagate immediately: they
// indicate a caller bug or a definitive answer, not an outage.
type Executor struct {
	selector Selector
	policy   Policy
	logger   *slog.Logger

	// onAttempt, when set, observes every attempt outcome (metrics hook).
	onAttempt func(op string, attempt int, err error)

	// sleep is replaced in tests to make backoff observable.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor builds an Executor. A MaxAttempts below 1 is clamped to 1.
func NewExecutor(selector Selector, policy Policy, logger *slog.Logger) *Executor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		selector: selector,
		policy:   policy,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// SetAttemptObserver installs a callback invoked after every attempt with
// the operation name, the 1-based attempt number, and its error (nil on
// success).
func (e *Executor) SetAttemptObserver(fn func(op string, attempt int, err error)) {
	e.onAttempt = fn
}

// Do runs op with bounded retry. Each attempt receives an endpoint drawn
// from the selector; success returns immediately. Cancelling ctx aborts the
// current backoff and the whole sequence. When every attempt fails with a
// retryable error the result is an *UnavailableError carrying the attempt
// count and the last cause.
func (e *Executor) Do(ctx context.Context, op string, fn func(ctx context.Context, endpoint string) error) error {
	var lastErr error

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		endpoint := e.selector.Next()
		e.logger.Debug("directory attempt",
			"operation", op,
			"endpoint", endpoint,
			"attempt", attempt,
		)

		start := time.Now()
		err := fn(ctx, endpoint)
		if e.onAttempt != nil {
			e.onAttempt(op, attempt, err)
		}

		if err == nil {
			if attempt > 1 {
				e.logger.Info("directory operation recovered",
					"operation", op,
					"endpoint", endpoint,
					"attempt", attempt,
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}
			return nil
		}

		if !IsRetryable(err) {
			return err
		}

		lastErr = err
		e.logger.Warn("directory attempt failed",
			"operation", op,
			"endpoint", endpoint,
			"attempt", attempt,
			"error", err,
		)

		if attempt < e.policy.MaxAttempts {
			if serr := e.sleep(ctx, e.policy.Backoff(attempt)); serr != nil {
				return serr
			}
		}
	}

	e.logger.Error("directory attempts exhausted",
		"operation", op,
		"attempts", e.policy.MaxAttempts,
		"error", lastErr,
	)
	return &UnavailableError{Op: op, Attempts: e.policy.MaxAttempts, Err: lastErr}
}

// Execute runs a value-returning operation through the executor.
func Execute[T any](ctx context.Context, e *Executor, op string, fn func(ctx context.Context, endpoint string) (T, error)) (T, error) {
	var out T
	err := e.Do(ctx, op, func(ctx context.Context, endpoint string) error {
		v, err := fn(ctx, endpoint)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// sleepCtx waits for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
