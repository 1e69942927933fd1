// Package poll drives re-entrant wallet operations. Every operation of the
// core either completes or returns errs.ErrWouldBlock; the Driver is the
// outer loop that retries it within a bounded number of attempts.
package poll

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github/chapool/dot-wallet/internal/wallet/errs"
)

// Driver bounds how long an operation may keep reporting would-block.
type Driver struct {
	// Attempts is the poll budget. Values below one mean a single attempt.
	Attempts int
	// Interval is slept between attempts when Yield is nil.
	Interval time.Duration
	// Yield, when set, replaces the sleep between attempts.
	Yield func(attempt int)
}

// DefaultDriver polls every 10ms for up to 30s.
func DefaultDriver() Driver {
	const (
		defaultAttempts = 3000
		defaultInterval = 10 * time.Millisecond
	)

	return Driver{Attempts: defaultAttempts, Interval: defaultInterval}
}

// Run calls step until it returns something other than errs.ErrWouldBlock.
// Running out of attempts, or ctx ending, returns errs.ErrTimeout.
func (d Driver) Run(ctx context.Context, step func() error) error {
	attempts := d.Attempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(errs.ErrTimeout, "poll aborted after %d attempts: %v", attempt, err)
		}

		err := step()
		if !errors.Is(err, errs.ErrWouldBlock) {
			return err
		}

		if attempt+1 < attempts {
			d.yield(ctx, attempt)
		}
	}

	return errors.Wrapf(errs.ErrTimeout, "no progress after %d poll attempts", attempts)
}

func (d Driver) yield(ctx context.Context, attempt int) {
	if d.Yield != nil {
		d.Yield(attempt)
		return
	}
	if d.Interval <= 0 {
		return
	}

	timer := time.NewTimer(d.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
