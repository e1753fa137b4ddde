package render

import (
	"fmt"

	"github.com/rohmanhakim/page-tracker/pkg/failure"
)

type RenderErrorCause string

const (
	ErrCauseUnknownFormat  RenderErrorCause = "unknown output format"
	ErrCauseParseFailure   RenderErrorCause = "failed to parse html"
	ErrCauseConvertFailure RenderErrorCause = "failed to convert to markdown"
	ErrCauseTitleNotFound  RenderErrorCause = "document has no title"
)

type RenderError struct {
	Message string
	Cause   RenderErrorCause
}

func (e *RenderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("render error: %s", e.Cause)
	}
	return fmt.Sprintf("render error: %s: %s", e.Cause, e.Message)
}

// Rendering the same text again gives the same result.
func (e *RenderError) Severity() failure.Severity {
	return failure.SeverityFatal
}
