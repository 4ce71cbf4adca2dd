// Package tenancy carries the caller's tenant through a context.
package tenancy

import (
	"context"

	"github.com/ycslms/lmsflow/pkg/models"
)

type contextKey string

const tenantKey contextKey = "tenant"

// WithTenant returns a copy of ctx carrying tenantID. An empty id leaves ctx unchanged.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	if tenantID == "" {
		return ctx
	}

	return context.WithValue(ctx, tenantKey, tenantID)
}

// FromContext returns the tenant stored in ctx, or models.DefaultTenant.
func FromContext(ctx context.Context) string {
	if tenantID, ok := ctx.Value(tenantKey).(string); ok && tenantID != "" {
		return tenantID
	}

	return models.DefaultTenant
}

// OrDefault returns tenantID, or models.DefaultTenant when it is empty.
func OrDefault(tenantID string) string {
	if tenantID == "" {
		return models.DefaultTenant
	}

	return tenantID
}
