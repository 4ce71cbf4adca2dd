// Package condition evaluates rule conditions against an entity snapshot.
package condition

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/ycslms/lmsflow/pkg/models"
)

// Evaluator evaluates simple, composite and pattern conditions.
// It holds no mutable state besides the predicate registry and is safe for concurrent use.
type Evaluator struct {
	predicates *PredicateRegistry
}

// NewEvaluator creates an evaluator. A nil registry selects the built-in predicates.
func NewEvaluator(predicates *PredicateRegistry) *Evaluator {
	if predicates == nil {
		predicates = NewPredicateRegistry()
	}

	return &Evaluator{predicates: predicates}
}

// Predicates returns the registry backing pattern conditions.
func (e *Evaluator) Predicates() *PredicateRegistry {
	return e.predicates
}

// Evaluate returns the truth value of cond. Errors wrap models.ErrEvaluation.
func (e *Evaluator) Evaluate(cond models.Condition, rc *models.RuleContext) (bool, error) {
	switch cond.Type {
	case models.ConditionSimple:
		left, _ := Resolve(cond.Field, rc)

		return Compare(cond.Operator, left, cond.Value)
	case models.ConditionComposite:
		return e.evaluateComposite(cond, rc)
	case models.ConditionPattern:
		fn, ok := e.predicates.Lookup(cond.Predicate)
		if !ok {
			return false, nil
		}

		return fn(rc, cond.Value), nil
	default:
		return false, fmt.Errorf("%w: unknown condition type %q", models.ErrEvaluation, cond.Type)
	}
}

func (e *Evaluator) evaluateComposite(cond models.Condition, rc *models.RuleContext) (bool, error) {
	switch cond.Logical {
	case models.LogicalAnd:
		for _, sub := range cond.Conditions {
			ok, err := e.Evaluate(sub, rc)
			if err != nil {
				return false, err
			}

			if !ok {
				return false, nil
			}
		}

		return true, nil
	case models.LogicalOr:
		for _, sub := range cond.Conditions {
			ok, err := e.Evaluate(sub, rc)
			if err != nil {
				return false, err
			}

			if ok {
				return true, nil
			}
		}

		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown logical operator %q", models.ErrEvaluation, cond.Logical)
	}
}

// Compare applies op to the two operands.
//
// Two nil operands are only EQUALS. One nil operand is only NOT_EQUALS.
// Ordering operators need two numeric operands and never coerce strings.
func Compare(op models.Operator, left, right any) (bool, error) {
	if left == nil || right == nil {
		switch op {
		case models.OpEquals:
			return left == nil && right == nil, nil
		case models.OpNotEquals:
			return (left == nil) != (right == nil), nil
		case models.OpGreaterThan, models.OpGreaterThanOrEqual, models.OpLessThan, models.OpLessThanOrEqual,
			models.OpContains, models.OpStartsWith, models.OpEndsWith:
			return false, nil
		default:
			return false, fmt.Errorf("%w: unknown operator %q", models.ErrEvaluation, op)
		}
	}

	switch op {
	case models.OpEquals:
		return equal(left, right), nil
	case models.OpNotEquals:
		return !equal(left, right), nil
	case models.OpGreaterThan, models.OpGreaterThanOrEqual, models.OpLessThan, models.OpLessThanOrEqual:
		return compareNumbers(op, left, right)
	case models.OpContains:
		return strings.Contains(fmt.Sprint(left), fmt.Sprint(right)), nil
	case models.OpStartsWith:
		return strings.HasPrefix(fmt.Sprint(left), fmt.Sprint(right)), nil
	case models.OpEndsWith:
		return strings.HasSuffix(fmt.Sprint(left), fmt.Sprint(right)), nil
	default:
		return false, fmt.Errorf("%w: unknown operator %q", models.ErrEvaluation, op)
	}
}

func equal(left, right any) bool {
	l, lok := ToFloat(left)
	r, rok := ToFloat(right)

	if lok && rok {
		return l == r
	}

	return reflect.DeepEqual(left, right)
}

func compareNumbers(op models.Operator, left, right any) (bool, error) {
	l, lok := ToFloat(left)
	r, rok := ToFloat(right)

	if !lok || !rok {
		return false, fmt.Errorf("%w: %s needs numeric operands, got %T and %T", models.ErrEvaluation, op, left, right)
	}

	switch op {
	case models.OpGreaterThan:
		return l > r, nil
	case models.OpGreaterThanOrEqual:
		return l >= r, nil
	case models.OpLessThan:
		return l < r, nil
	default:
		return l <= r, nil
	}
}

// ToFloat converts any Go numeric kind or json.Number to float64.
func ToFloat(v any) (float64, bool) {
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()

		return f, err == nil
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}
