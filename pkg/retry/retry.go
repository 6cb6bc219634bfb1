package retry

import (
	"context"
	"errors"
	"math"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
	defaultMultiplier  = 2.0
)

// Policy describes a bounded exponential backoff.
//
// Attempt n (1-based) that fails with a retryable error waits
// BaseDelay * Multiplier^(n-1), capped at MaxDelay when set.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration

	// Retryable decides whether an error warrants another attempt.
	// A nil predicate retries nothing.
	Retryable func(error) bool

	// Sleep waits between attempts; it defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Attempts reports how many tries Do made, including the final one.
type Attempts int

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = defaultMultiplier
	}
	if p.Sleep == nil {
		p.Sleep = SleepContext
	}
	return p
}

// Delay returns the wait that follows the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempt
// budget is spent, or ctx is done. The last error from fn is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) (Attempts, error) {
	if fn == nil {
		return 0, errors.New("retry: nil operation")
	}
	p = p.normalized()

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return Attempts(attempt), err
		}

		attempt++
		err := fn(ctx)
		if err == nil {
			return Attempts(attempt), nil
		}
		if attempt >= p.MaxAttempts || p.Retryable == nil || !p.Retryable(err) {
			return Attempts(attempt), err
		}

		if sleepErr := p.Sleep(ctx, p.Delay(attempt)); sleepErr != nil {
			return Attempts(attempt), sleepErr
		}
	}
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
