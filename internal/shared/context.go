package shared

import "context"

type sessionContextKey struct{}

type tenantContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithTenant stores the authenticated tenant in context.
func ContextWithTenant(ctx context.Context, tenant Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenant)
}

// TenantFromContext extracts the tenant placed by the RequireTenant middleware.
func TenantFromContext(ctx context.Context) (Tenant, bool) {
	tenant, ok := ctx.Value(tenantContextKey{}).(Tenant)
	return tenant, ok
}

// RequireTenantFrom is TenantFromContext for handlers: a missing tenant is
// ErrUnauthenticated.
func RequireTenantFrom(ctx context.Context) (Tenant, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok || tenant.Token == "" {
		return Tenant{}, ErrUnauthenticated
	}
	return tenant, nil
}
