package orchestrator

import (
	"errors"
	"fmt"
)

// DispatchError distinguishes a retriable failure (5xx/network
// error/408/429, or deferred/transport-error for
// agent_prompt) from a terminal one (4xx other than 408/429, permanently
// invalid DNS, ack=rejected, unknown adapter) that short-circuits
// straight to dead-letter.
type DispatchError struct {
	Retriable bool
	Err       error
}

func (e *DispatchError) Error() string { return e.Err.Error() }
func (e *DispatchError) Unwrap() error { return e.Err }

func retriable(format string, args ...any) *DispatchError {
	return &DispatchError{Retriable: true, Err: fmt.Errorf(format, args...)}
}

func terminal(format string, args ...any) *DispatchError {
	return &DispatchError{Retriable: false, Err: fmt.Errorf(format, args...)}
}

// IsRetriable reports whether err (as returned by a Dispatcher) should
// be retried per the action's backoff policy.
func IsRetriable(err error) bool {
	var de *DispatchError
	if !errors.As(err, &de) {
		return false
	}
	return de.Retriable
}
