package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted marks a failure that survived every attempt. Callers treat it
// as recoverable: the work may have landed and can be retried next turn.
var ErrExhausted = errors.New("retry attempts exhausted")

type Policy struct {
	Attempts  int
	BaseDelay time.Duration
}

// Do runs fn up to p.Attempts times, doubling the delay between attempts.
// The first error from fn is retried; the last one is wrapped in ErrExhausted.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := p.BaseDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
