package backend

import (
	"errors"
	"fmt"
)

// ErrIncompleteStream indicates the backend closed the event stream before
// emitting a terminal success or failure event.
var ErrIncompleteStream = errors.New("stream ended without a terminal event")

// ValidationError reports a request or stream event that failed strict
// validation. Nothing is coerced: an event with unknown fields or a missing
// required field fails the whole call.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ConnectionError indicates the backend could not be reached, or answered
// with a non-success status before any event was read.
type ConnectionError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend %s unreachable: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("backend %s returned status %d", e.Endpoint, e.StatusCode)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// BackendError carries a generation failure reported by the backend itself
// through a terminal error event.
type BackendError struct {
	Type    string
	Code    string
	Message string
}

func (e *BackendError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("backend reported failure (%s): %s", e.Type, e.Message)
	}
	return fmt.Sprintf("backend reported failure: %s", e.Message)
}
