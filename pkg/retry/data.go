package retry

import (
	"time"

	"github.com/rohmanhakim/page-tracker/pkg/timeutil"
)

// RetryParam holds the parameters for retry logic.
// These parameters are passed from outside (e.g., config) and should not
// be known by the retry handler internally.
type RetryParam struct {
	// Total number of calls, the first one included
	MaxAttempts  int
	Jitter       time.Duration
	RandomSeed   int64
	BackoffParam timeutil.BackoffParam
}

// NewRetryParam creates a new RetryParam with the given settings.
func NewRetryParam(
	maxAttempts int,
	jitter time.Duration,
	randomSeed int64,
	backoffParam timeutil.BackoffParam,
) RetryParam {
	return RetryParam{
		MaxAttempts:  maxAttempts,
		Jitter:       jitter,
		RandomSeed:   randomSeed,
		BackoffParam: backoffParam,
	}
}

// NoRetry calls the function exactly once.
func NoRetry() RetryParam {
	return RetryParam{MaxAttempts: 1}
}
