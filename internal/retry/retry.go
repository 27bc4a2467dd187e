// Package retry is a small generic retry-with-backoff helper. It is
// deliberately policy-light: callers that need a specific per-outcome
// policy (immediate retry on timeout, exponential backoff on rate limit)
// build that policy on top using a Classifier rather than Config's fixed
// backoff.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Config controls attempt count and the backoff between attempts.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultConfig returns a conservative policy: three attempts, 500ms base
// delay, exponential growth capped at 10s.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second, Jitter: true}
}

// Outcome classifies the result of one attempt so Do can decide whether and
// how long to wait before the next one.
type Outcome int

const (
	// OutcomeSuccess stops retrying.
	OutcomeSuccess Outcome = iota
	// OutcomeRetryBackoff waits an exponentially growing delay before the
	// next attempt — used for rate-limit responses.
	OutcomeRetryBackoff
	// OutcomeRetryImmediate retries with no delay — used for timeouts and
	// other transient errors.
	OutcomeRetryImmediate
	// OutcomeFail stops retrying and returns the error.
	OutcomeFail
)

// Classifier maps an attempt's error to an Outcome given the attempt number
// (1-based) and the configured max attempts.
type Classifier func(err error, attempt, maxAttempts int) Outcome

// DefaultClassifier retries any non-nil error immediately up to MaxAttempts.
func DefaultClassifier(err error, attempt, maxAttempts int) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	if attempt >= maxAttempts {
		return OutcomeFail
	}
	return OutcomeRetryImmediate
}

// Do runs fn up to cfg.MaxAttempts times, using classify to decide whether
// and how to wait between attempts. fn receives the 1-based attempt number.
func Do(ctx context.Context, cfg Config, classify Classifier, fn func(ctx context.Context, attempt int) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if classify == nil {
		classify = DefaultClassifier
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx, attempt)
		outcome := classify(err, attempt, cfg.MaxAttempts)
		switch outcome {
		case OutcomeSuccess:
			return nil
		case OutcomeFail:
			return err
		case OutcomeRetryImmediate:
			lastErr = err
			continue
		case OutcomeRetryBackoff:
			lastErr = err
			delay := backoff(cfg, attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return lastErr
}

// backoff computes 2^(attempt-1) * BaseDelay, capped at MaxDelay.
func backoff(cfg Config, attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt-1))) * cfg.BaseDelay
	if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	if cfg.Jitter {
		d = d/2 + time.Duration(rand.Int63n(int64(d/2+1)))
	}
	return d
}
