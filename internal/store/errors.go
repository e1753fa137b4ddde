package store

import (
	"fmt"
	"time"

	"github.com/rohmanhakim/page-tracker/internal/metadata"
	"github.com/rohmanhakim/page-tracker/pkg/failure"
)

type StoreErrorCause string

const (
	ErrCauseUnavailable     StoreErrorCause = "store unavailable"
	ErrCauseCommandFailed   StoreErrorCause = "command failed"
	ErrCauseNotAnInteger    StoreErrorCause = "value is not an integer"
	ErrCauseValueOutOfRange StoreErrorCause = "increment would overflow"
)

type StoreError struct {
	Message   string
	Retryable bool
	Cause     StoreErrorCause
	Err       error
}

func (e *StoreError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("store error: %s", e.Cause)
	}
	return fmt.Sprintf("store error: %s: %s", e.Cause, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *StoreError) IsRetryable() bool {
	return e.Retryable
}

// mapStoreErrorToMetadataCause is observational only.
func mapStoreErrorToMetadataCause(err *StoreError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseUnavailable, ErrCauseCommandFailed:
		return metadata.CauseStorageFailure
	case ErrCauseNotAnInteger, ErrCauseValueOutOfRange:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}

func recordStoreError(
	sink metadata.MetadataSink,
	backend string,
	action string,
	key string,
	err *StoreError,
) {
	sink.RecordError(
		time.Now(),
		"store",
		action,
		mapStoreErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrBackend, backend),
			metadata.NewAttr(metadata.AttrKey, key),
		},
	)
}
