package backoff

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

var ErrRetriesExhausted = errors.New("retries exhausted")

type Policy struct {
	// MaxAttempts bounds the number of calls, Budget bounds the total
	// elapsed time. Whichever trips first stops the retries.
	MaxAttempts int
	Budget      time.Duration
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

var Default = Policy{
	MaxAttempts: 3,
	Budget:      2 * time.Minute,
	BaseDelay:   2 * time.Second,
	MaxDelay:    time.Minute,
}

// Do calls f until it succeeds, retrying with exponential backoff and up
// to 10% jitter. The context cancels both waits and further attempts.
func (p Policy) Do(ctx context.Context, f func(ctx context.Context) error) error {
	deadline := time.Now().Add(p.Budget)

	var err error
	for attempt := 1; ; attempt++ {
		err = f(ctx)
		if err == nil {
			return nil
		}

		if attempt >= p.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}

		delay := p.delay(attempt)
		if p.Budget > 0 && time.Now().Add(delay).After(deadline) {
			return fmt.Errorf("%w: budget %s exceeded: %w", ErrRetriesExhausted, p.Budget, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (p Policy) delay(attempt int) time.Duration {
	delay := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay + time.Duration(rand.Int63n(int64(delay)/10+1))
}
