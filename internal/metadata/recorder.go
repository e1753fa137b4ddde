package metadata

import (
	"time"

	"github.com/apex/log"
)

/*
Recorder writes events as structured apex/log entries.

  - lookups are logged at debug level
  - fetches at info level
  - errors at error level

It must not perform I/O decisions or affect control flow. Entries are
emitted synchronously in the order the calling goroutine records them;
there is no ordering across goroutines.
*/
type Recorder struct {
	logger log.Interface
}

func NewRecorder(logger log.Interface) *Recorder {
	if logger == nil {
		logger = log.Log
	}
	return &Recorder{
		logger: logger,
	}
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	details string,
	attrs []Attribute,
) {
	fields := log.Fields{
		"observed_at": observedAt.UTC().Format(time.RFC3339Nano),
		"package":     packageName,
		"action":      action,
		"cause":       cause.String(),
	}
	for _, a := range attrs {
		fields[string(a.Key)] = a.Value
	}
	r.logger.WithFields(fields).Error(details)
}

func (r *Recorder) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	sizeByte uint64,
	contentHash string,
) {
	r.logger.WithFields(log.Fields{
		"url":          fetchUrl,
		"status":       httpStatus,
		"duration_ms":  duration.Milliseconds(),
		"content_type": contentType,
		"size_byte":    sizeByte,
		"content_hash": contentHash,
	}).Info("fetched")
}

func (r *Recorder) RecordLookup(url string, outcome LookupOutcome, count int64) {
	r.logger.WithFields(log.Fields{
		"url":     url,
		"outcome": outcome.String(),
		"count":   count,
	}).Debug("lookup")
}
