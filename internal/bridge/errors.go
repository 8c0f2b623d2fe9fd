package bridge

import (
	"fmt"
	"time"
)

// TimeoutError is returned by Send when an operation's deadline elapses
// before a matching result arrives. The deadline starts at transmission,
// not at enqueue, so time spent queued while unattached is not counted.
type TimeoutError struct {
	Kind    string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %q timed out after %s", e.Kind, e.Elapsed.Round(time.Millisecond))
}

// WorkerError is returned by Send when the worker reported success=false.
// Message carries the worker's error payload verbatim.
type WorkerError struct {
	Kind    string
	Message string
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker rejected %q: %s", e.Kind, e.Message)
}

// ShutdownError is returned for every operation still pending or queued
// when the bridge stops.
type ShutdownError struct{}

func (e *ShutdownError) Error() string {
	return "bridge is shutting down"
}
