package auth

import (
	"context"
)

var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// WithContext sets the confirmed user in the given context
func WithContext(ctx context.Context, user *UserInfo) context.Context {
	return context.WithValue(ctx, userCtxKey, user.Clone())
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*UserInfo, bool) {
	raw, ok := ctx.Value(userCtxKey).(*UserInfo)
	if !ok || raw == nil {
		return nil, false
	}
	return raw, true
}

// UserIDFromContext returns the id of the user stored in ctx
func UserIDFromContext(ctx context.Context) (string, bool) {
	user, ok := FromContext(ctx)
	if !ok {
		return "", false
	}
	return user.ID, user.ID != ""
}
