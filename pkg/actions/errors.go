package actions

import (
	"errors"
	"fmt"

	"github.com/ycslms/lmsflow/pkg/models"
)

// ActionError reports the first failing action of a rule.
type ActionError struct {
	RuleID string
	Index  int
	Type   models.ActionType
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d (%s) of rule %s failed: %v", e.Index, e.Type, e.RuleID, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Is matches models.ErrAction as well as the wrapped cause.
func (e *ActionError) Is(target error) bool {
	return target == models.ErrAction || errors.Is(e.Err, target)
}

var errMissingParameter = errors.New("missing required parameter")

func missing(name string) error {
	return fmt.Errorf("%w %q", errMissingParameter, name)
}
