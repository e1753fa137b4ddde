package fetcher

import (
	"fmt"

	"github.com/rohmanhakim/page-tracker/internal/metadata"
	"github.com/rohmanhakim/page-tracker/pkg/failure"
)

type FetchErrorCause string

const (
	ErrCauseInvalidRequest   FetchErrorCause = "invalid request"
	ErrCauseTimeout          FetchErrorCause = "timeout"
	ErrCauseNetworkFailure   FetchErrorCause = "network issues"
	ErrCauseHTTPStatus       FetchErrorCause = "unsuccessful http status"
	ErrCauseReadResponseBody FetchErrorCause = "failed to read response body"
)

type FetchError struct {
	Message   string
	Retryable bool
	Cause     FetchErrorCause
	// zero when no response was received
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("fetcher error: %s", e.Cause)
	}
	return fmt.Sprintf("fetcher error: %s: %s", e.Cause, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// IsRetryable reports whether the same request might succeed later.
// The fetcher itself never retries.
func (e *FetchError) IsRetryable() bool {
	return e.Retryable
}

// mapFetchErrorToMetadataCause maps fetcher-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapFetchErrorToMetadataCause(err *FetchError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseTimeout, ErrCauseNetworkFailure, ErrCauseReadResponseBody:
		return metadata.CauseNetworkFailure
	case ErrCauseHTTPStatus:
		return metadata.CauseRemoteRejected
	default:
		return metadata.CauseUnknown
	}
}
