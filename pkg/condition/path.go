package condition

import (
	"strings"

	"github.com/ycslms/lmsflow/pkg/models"
)

const (
	dataPrefix    = "data."
	contextPrefix = "context."
)

// Resolve looks a field path up in the rule context. "context.entityType",
// "context.entityId" and "context.tenantId" address the metadata; "data.a.b"
// and unprefixed paths walk the data map. The boolean is false when the path
// is absent.
func Resolve(path string, rc *models.RuleContext) (any, bool) {
	if rc == nil {
		return nil, false
	}

	if key, ok := strings.CutPrefix(path, contextPrefix); ok {
		switch key {
		case "entityType":
			return rc.EntityType, true
		case "entityId":
			return rc.EntityID, true
		case "tenantId":
			return rc.TenantID, true
		default:
			return nil, false
		}
	}

	return Lookup(rc.Data, strings.TrimPrefix(path, dataPrefix))
}

// Lookup walks a dotted key path through nested maps.
func Lookup(data map[string]any, path string) (any, bool) {
	if data == nil || path == "" {
		return nil, false
	}

	current := any(data)

	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}

	return current, true
}
