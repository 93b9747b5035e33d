package auth

import "context"

type contextKey struct{}

type AuthContext struct {
	UserID    string
	Admin     bool
	SessionID int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.UserID
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Admin
}

// CanAccess reports whether the caller may act on the given user's data:
// their own, or anyone's for admins.
func CanAccess(ctx context.Context, userID string) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Admin || ac.UserID == userID
}
