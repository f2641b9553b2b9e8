// Package retry provides the retry policy applied to single API calls.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/codebypatrickleung/lakeshift-cli/internal/logger"
)

// Policy retries a single operation on failure with linearly increasing
// backoff: the wait before attempt n+1 is Delay * n. MaxAttempts is the total
// number of attempts, and the final attempt's error is the one returned.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// linearBackOff implements backoff.BackOff with delay * attempt waits.
type linearBackOff struct {
	delay   time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.delay
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

// Do runs op until it succeeds or MaxAttempts is exhausted. Each failed
// attempt except the last logs a warning; exhaustion logs an error and
// returns the final attempt's failure.
func (p Policy) Do(ctx context.Context, name string, log *logger.Logger, op func() error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempt := 0
	notify := func(err error, wait time.Duration) {
		attempt++
		log.Warningf("%s failed (attempt %d/%d): %v. Retrying in %s...", name, attempt, maxAttempts, err, wait)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{delay: p.Delay}, uint64(maxAttempts-1)),
		ctx,
	)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		log.Errorf("%s failed after %d attempts", name, maxAttempts)
		return err
	}
	return nil
}
