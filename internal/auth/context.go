package auth

import "context"

type contextKey struct{}

type adminContextKey struct{}

// AuthContext identifies the main-application user behind a request.
// SessionID is zero when the request authenticated with an API token.
type AuthContext struct {
	UserID    int64
	Role      string
	SessionID int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == "admin"
}

// AdminContext identifies an admin portal principal, set by the admin guard.
type AdminContext struct {
	UserID   int64
	Username string
}

func WithAdmin(ctx context.Context, ac AdminContext) context.Context {
	return context.WithValue(ctx, adminContextKey{}, ac)
}

func AdminFromContext(ctx context.Context) (AdminContext, bool) {
	ac, ok := ctx.Value(adminContextKey{}).(AdminContext)
	return ac, ok
}
