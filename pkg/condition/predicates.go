package condition

import (
	"strings"
	"sync"

	"github.com/ycslms/lmsflow/pkg/models"
)

// Built-in predicate thresholds.
const (
	DefaultVolumeThreshold = 29.0
	DefaultValueThreshold  = 1500.0
)

// PredicateFunc tests a named business predicate. override is the pattern
// condition's Value and is nil when the condition does not set one.
type PredicateFunc func(rc *models.RuleContext, override any) bool

// PredicateRegistry maps the closed set of predicate names to implementations.
type PredicateRegistry struct {
	mu         sync.RWMutex
	predicates map[models.Predicate]PredicateFunc
}

// NewPredicateRegistry returns a registry preloaded with the built-in predicates.
func NewPredicateRegistry() *PredicateRegistry {
	r := &PredicateRegistry{predicates: make(map[models.Predicate]PredicateFunc)}

	r.Register(models.PredicateVolumeExceedsThreshold, exceeds("totalCbm", DefaultVolumeThreshold))
	r.Register(models.PredicateValueExceedsThreshold, exceeds("totalValue", DefaultValueThreshold))
	r.Register(models.PredicateMemberCodeMissing, memberCodeMissing)
	r.Register(models.PredicateValidationSucceeded, isTrue("validationSuccess"))
	r.Register(models.PredicateAutoCheckApproved, isTrue("autoCheckApproved"))

	return r
}

// Register adds or replaces a predicate.
func (r *PredicateRegistry) Register(name models.Predicate, fn PredicateFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.predicates[name] = fn
}

// Lookup returns the predicate registered under name.
func (r *PredicateRegistry) Lookup(name models.Predicate) (PredicateFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.predicates[name]

	return fn, ok
}

func exceeds(field string, threshold float64) PredicateFunc {
	return func(rc *models.RuleContext, override any) bool {
		limit := threshold
		if v, ok := ToFloat(override); ok {
			limit = v
		}

		value, ok := Lookup(rc.Data, field)
		if !ok {
			return false
		}

		n, ok := ToFloat(value)

		return ok && n > limit
	}
}

func memberCodeMissing(rc *models.RuleContext, _ any) bool {
	value, ok := Lookup(rc.Data, "memberCode")
	if !ok || value == nil {
		return true
	}

	s, isString := value.(string)

	return isString && strings.TrimSpace(s) == ""
}

func isTrue(field string) PredicateFunc {
	return func(rc *models.RuleContext, _ any) bool {
		value, _ := Lookup(rc.Data, field)
		b, ok := value.(bool)

		return ok && b
	}
}
