// Package appctx holds the request-scoped context keys shared by middlewares,
// utils and models without an import cycle.
package appctx

import "context"

type ContextKey string

func (c ContextKey) String() string { return "appctx." + string(c) }

const (
	ContextKeyTokenId       ContextKey = "tokenId"
	ContextKeyUsername      ContextKey = "username"
	ContextKeyUserId        ContextKey = "userId"
	ContextKeyUserRole      ContextKey = "userRole"
	ContextKeyCorrelationId ContextKey = "correlationId"
)

// Get returns the value stored under key when it has type T.
func Get[T any](ctx context.Context, key ContextKey) (T, bool) {
	v, ok := ctx.Value(key).(T)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
