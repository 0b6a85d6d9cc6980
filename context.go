package vauth

import "context"

// AuthContext is the authenticated-request value produced by token
// verification. It is passed explicitly into handlers and engine calls
// instead of being attached to a mutable request object.
type AuthContext struct {
	UserID    string
	SessionID string
	Role      Role
}

type authContextKey struct{}

// WithAuthContext attaches an AuthContext to ctx. Middleware calls this
// after verifying an access token.
func WithAuthContext(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// AuthFromContext retrieves the AuthContext set by WithAuthContext.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	if ctx == nil {
		return AuthContext{}, false
	}
	ac, ok := ctx.Value(authContextKey{}).(AuthContext)
	return ac, ok
}
