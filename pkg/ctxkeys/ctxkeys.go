// Package ctxkeys defines typed context keys to avoid SA1029 lint warnings
// and prevent key collisions across packages.
package ctxkeys

import "context"

// Key is a typed context key to prevent collisions.
type Key string

// Auth context keys
const (
	KeyUserID         Key = "user_id"
	KeyOrganizationID Key = "organization_id"
	KeyEmail          Key = "email"
	KeyRole           Key = "role"
	KeyAuthType       Key = "auth_type"
)

// Request context keys
const (
	KeyRequestID Key = "request_id"
	KeyClientIP  Key = "client_ip"
)

// GetOrganizationID extracts organization_id from context.
func GetOrganizationID(ctx context.Context) string {
	if v, ok := ctx.Value(KeyOrganizationID).(string); ok {
		return v
	}
	return ""
}

// GetUserID extracts user_id from context.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(KeyUserID).(string); ok {
		return v
	}
	return ""
}

// WithOrganizationID returns a context carrying the organization id.
func WithOrganizationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, KeyOrganizationID, id)
}

// WithUserID returns a context carrying the user id.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, KeyUserID, id)
}
