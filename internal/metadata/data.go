package metadata

/*
	ErrorCause is a closed, canonical classification used exclusively for
	observability (logging, metrics, reporting).

	Rules:
	 - ErrorCause must never be used to derive retry or abort decisions.
	 - ErrorCause values have stable, package-agnostic semantics.
	 - Packages MAY map their local errors to ErrorCause,
	   but MUST NOT invent new meanings.

If a failure does not clearly match a defined cause, CauseUnknown MUST be used.
*/
type ErrorCause int

/*
Canonical ErrorCause Table

# CauseUnknown

  - The failure does not map cleanly to any known category.

# CauseNetworkFailure

  - Failure caused by network transport or remote availability.
  - TCP timeouts, DNS resolution failures, connection resets.

# CauseRemoteRejected

  - The remote server answered, but with an error status (4xx, 5xx).

# CauseContentInvalid

  - Content was fetched but could not be decoded or processed.

# CauseStorageFailure

  - The key-value store could not be reached or rejected a command.

# CauseInvariantViolation

  - A stored value broke an expectation of this system,
    e.g. a request counter that is not an integer.
*/
const (
	CauseUnknown ErrorCause = iota
	CauseNetworkFailure
	CauseRemoteRejected
	CauseContentInvalid
	CauseStorageFailure
	CauseInvariantViolation
)

func (c ErrorCause) String() string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CauseRemoteRejected:
		return "remote_rejected"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	default:
		return "unknown"
	}
}

// LookupOutcome tells whether a request was answered from the cache.
type LookupOutcome int

const (
	LookupMiss LookupOutcome = iota
	LookupHit
)

func (o LookupOutcome) String() string {
	if o == LookupHit {
		return "hit"
	}
	return "miss"
}

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrURL        AttributeKey = "url"
	AttrKey        AttributeKey = "key"
	AttrBackend    AttributeKey = "backend"
	AttrHTTPStatus AttributeKey = "http_status"
	AttrMessage    AttributeKey = "message"
)
