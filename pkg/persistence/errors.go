package persistence

import (
	"errors"
	"fmt"
)

// ErrInvalidID indicates an id that cannot be used as a storage key.
var ErrInvalidID = errors.New("invalid id")

// StoreError wraps storage errors with the operation and entity involved.
type StoreError struct {
	Op     string // Operation being performed (e.g., "SaveInstance", "TaskByID")
	Entity string // "instance" or "task"
	ID     string // Entity ID if applicable
	Err    error  // Underlying error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for store errors.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewInstanceError creates a store error for an instance operation.
func NewInstanceError(op, id string, err error) *StoreError {
	return &StoreError{Op: op, Entity: "instance", ID: id, Err: err}
}

// NewTaskError creates a store error for a task operation.
func NewTaskError(op, id string, err error) *StoreError {
	return &StoreError{Op: op, Entity: "task", ID: id, Err: err}
}
