package middleware

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	roleKey
	accessIDKey
)

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func withString(ctx context.Context, key ctxKey, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func UserIDFromContext(ctx context.Context) string { return stringValue(ctx, userIDKey) }

// UserUUIDFromContext is uuid.Nil for anonymous requests.
func UserUUIDFromContext(ctx context.Context) uuid.UUID {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// RoleFromContext is the role claimed by the token, not the resolved one.
func RoleFromContext(ctx context.Context) string { return stringValue(ctx, roleKey) }

// AccessIDFromContext is the jti of the request's access token.
func AccessIDFromContext(ctx context.Context) string { return stringValue(ctx, accessIDKey) }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, userIDKey, userID)
}

func WithRole(ctx context.Context, role string) context.Context {
	return withString(ctx, roleKey, role)
}

func WithAccessID(ctx context.Context, accessID string) context.Context {
	return withString(ctx, accessIDKey, accessID)
}
