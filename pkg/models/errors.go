// Package models defines the rule and workflow domain models shared by the orchestration core.
package models

import (
	"errors"
)

// ErrNotFound is the parent of every "unknown id" error.
var ErrNotFound = errors.New("not found")

// Lookup errors. All of them match ErrNotFound with errors.Is.
var (
	ErrRuleNotFound     = &notFoundError{what: "rule"}
	ErrRuleSetNotFound  = &notFoundError{what: "rule set"}
	ErrWorkflowNotFound = &notFoundError{what: "workflow definition"}
	ErrInstanceNotFound = &notFoundError{what: "workflow instance"}
	ErrTaskNotFound     = &notFoundError{what: "workflow task"}
)

var (
	// ErrInvalidState indicates an operation is not allowed in the current lifecycle state.
	ErrInvalidState = errors.New("invalid state")

	// ErrEvaluation indicates a condition could not be evaluated (incompatible operands, unknown operator).
	ErrEvaluation = errors.New("condition evaluation failed")

	// ErrAction indicates a rule action side effect failed.
	ErrAction = errors.New("action failed")

	// ErrNodeExecution indicates a workflow node could not be executed.
	ErrNodeExecution = errors.New("node execution failed")

	// ErrInvalidDefinition indicates a workflow definition violates graph invariants.
	ErrInvalidDefinition = errors.New("invalid workflow definition")

	// ErrInvalidRule indicates a rule or rule set is missing required fields.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrInvalidTaskResult indicates task result data does not satisfy the node result schema.
	ErrInvalidTaskResult = errors.New("invalid task result")
)

type notFoundError struct {
	what string
}

func (e *notFoundError) Error() string {
	return e.what + " not found"
}

func (e *notFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsNotFound reports whether err is any of the lookup errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidState reports whether err is a lifecycle conflict.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsValidation reports whether err was caused by invalid caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidDefinition) ||
		errors.Is(err, ErrInvalidRule) ||
		errors.Is(err, ErrInvalidTaskResult)
}
