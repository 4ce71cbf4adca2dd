package rules

import (
	"errors"
	"fmt"
)

// RuleError wraps rule registry and engine errors with the rule or rule set involved.
type RuleError struct {
	Op     string // Operation being performed (e.g., "ExecuteRule", "Register")
	RuleID string // Rule or rule set ID
	Err    error  // Underlying error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s operation failed for rule %s: %v", e.Op, e.RuleID, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for rule errors.
func (e *RuleError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newRuleError(op, ruleID string, err error) *RuleError {
	return &RuleError{Op: op, RuleID: ruleID, Err: err}
}
