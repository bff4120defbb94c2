// Package dbretry retries transient PostgreSQL failures with exponential
// backoff. Failures that survive the policy are wrapped in types.ErrStorage
// so callers can distinguish infrastructure faults from logic errors.
package dbretry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rafaello-cc/levelbot/internal/database/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

var (
	maxElapsedTime  = 20 * time.Second
	initialInterval = 250 * time.Millisecond
	maxInterval     = 5 * time.Second
	maxRetries      = uint64(5)
)

// IsRetryableError reports whether the error is worth retrying.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// PostgreSQL error classes: 08 connection, 40 serialization/deadlock,
	// 53 resources, 57 operator intervention, 55 lock contention.
	var pgerr *pgdriver.Error
	if errors.As(err, &pgerr) {
		switch pgerr.Field('C') {
		case "08000", "08001", "08003", "08004", "08006", "08007", "08P01",
			"40001", "40P01",
			"53000", "53100", "53200", "53300", "53400",
			"57000", "57P01", "57P02", "57P03", "57P04",
			"55006", "55P03":
			return true
		}

		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errMsg := err.Error()

	return strings.Contains(errMsg, "connection reset by peer") ||
		strings.Contains(errMsg, "broken pipe") ||
		strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "no connection") ||
		strings.Contains(errMsg, "i/o timeout") ||
		strings.Contains(errMsg, "EOF")
}

// Operation runs a database operation under the retry policy and returns
// its result.
func Operation[T any](ctx context.Context, operation func(context.Context) (T, error)) (T, error) {
	var (
		result  T
		lastErr error
	)

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(maxElapsedTime),
		backoff.WithInitialInterval(initialInterval),
		backoff.WithMaxInterval(maxInterval),
	), maxRetries)

	err := backoff.Retry(func() error {
		var err error

		result, err = operation(ctx)
		if err != nil {
			if !IsRetryableError(err) {
				return backoff.Permanent(err)
			}

			lastErr = err

			return err
		}

		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		// Not-found and cancellation are outcomes, not storage faults.
		if errors.Is(err, types.ErrNotFound) || errors.Is(err, context.Canceled) {
			return result, err
		}

		if lastErr != nil {
			return result, fmt.Errorf("%w: retries exhausted: %w", types.ErrStorage, lastErr)
		}

		return result, fmt.Errorf("%w: %w", types.ErrStorage, err)
	}

	return result, nil
}

// NoResult runs a database operation that only returns an error.
func NoResult(ctx context.Context, operation func(context.Context) error) error {
	_, err := Operation(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	})

	return err
}

// Transaction runs fn inside a transaction under the retry policy. The
// whole transaction is re-run on a retryable failure.
func Transaction(ctx context.Context, db *bun.DB, fn func(context.Context, bun.Tx) error) error {
	return NoResult(ctx, func(ctx context.Context) error {
		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return fn(ctx, tx)
		})
	})
}
