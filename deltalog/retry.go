package deltalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"delta-go/deltaerr"
)

// CommitWithRetry commits an OptimisticTransaction obtained from txnFactory,
// retrying on ConcurrentModification up to that transaction's
// maxRetryCount total attempts. Before every attempt after the first it
// sleeps 50ms*2^(attempt-1) and then calls txnFactory again, so each retry
// re-derives a fresh transaction — including a freshly captured read
// version and a re-evaluated read set — rather than reusing stale state
// from a failed attempt. ctx cancellation during the backoff sleep surfaces
// as an IoError wrapping ctx.Err().
//
// This replaces the single global retry helper the reference implementation
// exposed, which built a throwaway transaction against a hardcoded path and
// discarded the caller's actual transaction state on every attempt.
func CommitWithRetry(ctx context.Context, txnFactory func() (*OptimisticTransaction, error), operation string) (int64, error) {
	tx, err := txnFactory()
	if err != nil {
		return 0, err
	}
	maxAttempts := tx.maxRetryCount
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRetryCount
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := 50 * time.Millisecond * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return 0, deltaerr.Wrap(deltaerr.IoError, "deltalog.CommitWithRetry", ctx.Err())
			}
			tx, err = txnFactory()
			if err != nil {
				return 0, err
			}
		}

		version, err := tx.Commit(operation)
		if err == nil {
			return version, nil
		}
		if !errors.Is(err, deltaerr.ConcurrentModification) {
			return 0, err
		}
		lastErr = err
	}

	return 0, deltaerr.Wrap(deltaerr.IoError, "deltalog.CommitWithRetry",
		fmt.Errorf("exhausted %d attempts: %w", maxAttempts, lastErr))
}
