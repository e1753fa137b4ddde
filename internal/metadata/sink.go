package metadata

import (
	"time"
)

/*
MetadataSink receives structured events from the tracker and its adapters.

Metadata is write-only. Nothing may read it back to decide whether to
serve from cache, fetch, or fail. Implementations must be safe for
concurrent use because the tracker is.
*/
type MetadataSink interface {
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		details string,
		attrs []Attribute,
	)

	RecordFetch(
		fetchUrl string,
		httpStatus int,
		duration time.Duration,
		contentType string,
		sizeByte uint64,
		contentHash string,
	)

	RecordLookup(
		url string,
		outcome LookupOutcome,
		count int64,
	)
}

// NoopSink implements MetadataSink but does nothing.
// Tests and library callers inject it when they do not care about events.
type NoopSink struct{}

func (n *NoopSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	details string,
	attrs []Attribute,
) {
}

func (n *NoopSink) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	sizeByte uint64,
	contentHash string,
) {
}

func (n *NoopSink) RecordLookup(url string, outcome LookupOutcome, count int64) {}

// Tee fans every event out to all sinks in order.
type Tee []MetadataSink

func (t Tee) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	details string,
	attrs []Attribute,
) {
	for _, s := range t {
		s.RecordError(observedAt, packageName, action, cause, details, attrs)
	}
}

func (t Tee) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	sizeByte uint64,
	contentHash string,
) {
	for _, s := range t {
		s.RecordFetch(fetchUrl, httpStatus, duration, contentType, sizeByte, contentHash)
	}
}

func (t Tee) RecordLookup(url string, outcome LookupOutcome, count int64) {
	for _, s := range t {
		s.RecordLookup(url, outcome, count)
	}
}
