package retry

import (
	"fmt"

	"github.com/rohmanhakim/page-tracker/pkg/failure"
)

type RetryErrorCause string

const (
	ErrZeroAttempt       RetryErrorCause = "zero attempt"
	ErrExhaustedAttempts RetryErrorCause = "exhausted attempt"
)

type RetryError struct {
	Message  string
	Cause    RetryErrorCause
	Attempts int
	// last error returned by the retried function
	Err error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry error: %s, %s", e.Cause, e.Message)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

func (e *RetryError) Severity() failure.Severity {
	if e.Cause == ErrZeroAttempt {
		return failure.SeverityFatal
	}
	return failure.SeverityRecoverable
}

// IsRetryable is false: the attempts are already spent.
func (e *RetryError) IsRetryable() bool {
	return false
}
