package batch

import (
	"github.com/Sternrassler/proxy-inspector/pkg/transport"
	"github.com/google/uuid"
)

// FailureStatus is the status label of a request that could not be
// completed. It keeps "the target answered with an error" apart from "no
// answer was obtained".
const FailureStatus = "ERROR"

// Failure describes a request that could not be completed.
type Failure struct {
	Class       transport.ErrorClass
	Description string
}

// RunResult is the outcome of one request descriptor. Exactly one of
// Response and Failure is set.
type RunResult struct {
	// RunID identifies the run the request belongs to.
	RunID uuid.UUID

	// Index joins the result back to the originating payload.
	Index int

	Response *transport.Response
	Failure  *Failure
}

// OK reports whether the request completed.
func (r RunResult) OK() bool {
	return r.Response != nil
}

// StatusLabel returns the response status line, or FailureStatus.
func (r RunResult) StatusLabel() string {
	if r.Response != nil {
		return r.Response.StatusLine
	}
	return FailureStatus
}

// BodyLen returns the length of the response body text, or 0 on failure.
func (r RunResult) BodyLen() int {
	if r.Response != nil {
		return len(r.Response.BodyText)
	}
	return 0
}
