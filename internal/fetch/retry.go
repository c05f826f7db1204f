package fetch

import (
	"context"
	"log/slog"
	"time"
)

// Sleeper blocks for d or until ctx is done
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// RealSleeper waits on the wall clock
var RealSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
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
})

// BackoffFunc returns the wait after a failed attempt (0-based)
type BackoffFunc func(attempt int, err error) time.Duration

// DefaultBackoff waits 2^(attempt+1)s after transient failures and
// 2^(attempt+2)s after a 429
func DefaultBackoff(attempt int, err error) time.Duration {
	exp := attempt + 1
	if KindOf(err) == KindRateLimit {
		exp = attempt + 2
	}

	return time.Duration(1<<uint(exp)) * time.Second
}

// Policy is the single retry policy shared by every network caller
type Policy struct {
	MaxRetries int
	Backoff    BackoffFunc
	Retryable  func(err error) bool
	Sleeper    Sleeper
	Logger     *slog.Logger
}

// DefaultPolicy retries transient and rate-limit failures with DefaultBackoff
func DefaultPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries: maxRetries,
		Backoff:    DefaultBackoff,
		Retryable:  func(err error) bool { return KindOf(err).Retryable() },
		Sleeper:    RealSleeper,
	}
}

// Do runs op until it succeeds, returns a non-retryable error, or
// MaxRetries attempts were made. There is no wait after the final attempt.
func (p Policy) Do(ctx context.Context, op func(attempt int) error) error {
	attempts := max(p.MaxRetries, 1)
	backoff := p.Backoff
	if backoff == nil {
		backoff = DefaultBackoff
	}
	sleeper := p.Sleeper
	if sleeper == nil {
		sleeper = RealSleeper
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := op(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}

		if attempt == attempts-1 {
			break
		}

		wait := backoff(attempt, err)
		if p.Logger != nil {
			p.Logger.WarnContext(ctx, "retrying request",
				"attempt", attempt+1,
				"max_retries", attempts,
				"backoff", wait,
				"error", err)
		}

		if err := sleeper.Sleep(ctx, wait); err != nil {
			return lastErr
		}
	}

	return lastErr
}
