package rowlock

import (
	"context"
	"slices"
	"time"
)

// AuthContext describes the caller identity that row-level-security
// policies evaluate against. It is established by the caller before
// performing operations and travels with the context.Context of each
// call, so concurrent operations never observe each other's identity.
type AuthContext struct {
	// SubjectID is the authenticated subject's unique identifier.
	SubjectID string
	// TenantID is the subject's tenant for multi-tenant isolation.
	TenantID string
	// Roles are the subject's roles.
	Roles []string
	// IsSystem marks a privileged system identity that bypasses all
	// policy evaluation.
	IsSystem bool
	// Timestamp records when the context was established.
	Timestamp time.Time
	// Environment names the runtime environment (e.g. "production").
	Environment string
	// Features holds enabled feature flags.
	Features map[string]bool
}

// HasRole reports whether the subject holds the given role.
func (a *AuthContext) HasRole(role string) bool {
	return a != nil && slices.Contains(a.Roles, role)
}

// HasAnyRole reports whether the subject holds any of the given roles.
func (a *AuthContext) HasAnyRole(roles ...string) bool {
	if a == nil {
		return false
	}
	for _, r := range roles {
		if slices.Contains(a.Roles, r) {
			return true
		}
	}
	return false
}

// HasFeature reports whether the named feature flag is enabled.
func (a *AuthContext) HasFeature(name string) bool {
	return a != nil && a.Features[name]
}

type authCtxKey struct{}

// WithAuth returns a context with the auth context attached. Installing a
// new auth context on a derived context never mutates the outer one;
// restoration on scope exit follows from context immutability.
func WithAuth(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authCtxKey{}, ac)
}

// AuthFromContext returns the auth context attached to ctx, or nil.
func AuthFromContext(ctx context.Context) *AuthContext {
	ac, _ := ctx.Value(authCtxKey{}).(*AuthContext)
	return ac
}
