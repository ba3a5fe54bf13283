package actuator

import "fmt"

// ActuationError wraps a motor driver failure with the operation that
// triggered it. It is surfaced through the fault callback, never
// returned across the gateway boundary.
type ActuationError struct {
	Op  string
	Err error
}

func (e *ActuationError) Error() string {
	return fmt.Sprintf("actuation failed during %s: %v", e.Op, e.Err)
}

func (e *ActuationError) Unwrap() error { return e.Err }
