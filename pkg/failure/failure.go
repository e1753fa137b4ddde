package failure

type Severity int

// caller control flow
const (
	SeverityFatal Severity = iota
	SeverityRecoverable
)

func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "fatal"
	case SeverityRecoverable:
		return "recoverable"
	default:
		return "unknown"
	}
}

type ClassifiedError interface {
	error
	Severity() Severity
}

// Retryable is implemented by classified errors that can tell whether
// repeating the same operation might succeed. retry.Retry only repeats
// calls whose error reports true.
type Retryable interface {
	IsRetryable() bool
}
