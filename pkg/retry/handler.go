package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/rohmanhakim/page-tracker/pkg/failure"
	"github.com/rohmanhakim/page-tracker/pkg/timeutil"
)

// Retry executes the provided function with retry logic.
// It will retry the function up to MaxAttempts times, applying exponential backoff
// with jitter between attempts. Only errors reporting IsRetryable() == true
// trigger a retry; any other error is returned unchanged.
//
// With a single attempt the function's error is returned as-is. After more
// than one failed attempt the last error is wrapped in a RetryError.
// Cancelling ctx stops the wait between attempts and returns ctx.Err().
//
// Type parameter T represents the return type of the function being retried.
func Retry[T any](ctx context.Context, retryParam RetryParam, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if retryParam.MaxAttempts < 1 {
		return zero, &RetryError{
			Message: "max attempt cannot be 0",
			Cause:   ErrZeroAttempt,
		}
	}

	rng := rand.New(rand.NewSource(retryParam.RandomSeed))

	var lastErr error
	for attempt := 1; attempt <= retryParam.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isErrorRetryable(err) {
			return zero, err
		}
		if attempt == retryParam.MaxAttempts {
			break
		}

		backoffDelay := timeutil.ExponentialBackoffDelay(
			attempt,
			retryParam.Jitter,
			rng,
			retryParam.BackoffParam,
		)
		if err := timeutil.Sleep(ctx, backoffDelay); err != nil {
			return zero, err
		}
	}

	if retryParam.MaxAttempts == 1 {
		return zero, lastErr
	}
	return zero, &RetryError{
		Message:  fmt.Sprintf("exhausted %d attempts. Last error: %v", retryParam.MaxAttempts, lastErr),
		Cause:    ErrExhaustedAttempts,
		Attempts: retryParam.MaxAttempts,
		Err:      lastErr,
	}
}

// isErrorRetryable reports whether any error in err's chain says it can
// be retried. Errors that do not say are not retried.
func isErrorRetryable(err error) bool {
	var r failure.Retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return false
}
