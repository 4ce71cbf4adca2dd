package workflow

import (
	"errors"
	"fmt"
)

// InstanceError wraps executor errors with the instance involved.
type InstanceError struct {
	Op         string // Operation being performed (e.g., "CompleteTask", "FireTimer")
	InstanceID string // Instance ID if applicable
	Err        error  // Underlying error
}

func (e *InstanceError) Error() string {
	return fmt.Sprintf("%s operation failed for instance %s: %v", e.Op, e.InstanceID, e.Err)
}

func (e *InstanceError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for instance errors.
func (e *InstanceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newInstanceError(op, instanceID string, err error) *InstanceError {
	return &InstanceError{Op: op, InstanceID: instanceID, Err: err}
}
