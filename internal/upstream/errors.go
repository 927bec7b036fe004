package upstream

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that the upstream API returned HTTP 404 for the
// requested resource. Callers use [errors.Is] to distinguish a missing card
// or combo from other upstream failures.
var ErrNotFound = errors.New("not found")

// StatusError reports a non-2xx upstream response other than 404. It carries
// the HTTP status code and whatever human-readable message the upstream
// included in its error body.
type StatusError struct {
	// Status is the HTTP status code returned by the upstream.
	Status int

	// Message is the upstream's own error description, if any.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream: HTTP %d", e.Status)
	}
	return fmt.Sprintf("upstream: HTTP %d: %s", e.Status, e.Message)
}

// ParseError reports that an upstream response body was not valid JSON for
// the expected shape. It never masks a decode failure as an empty result.
type ParseError struct {
	// Err is the underlying decode error.
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("upstream: invalid JSON response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
