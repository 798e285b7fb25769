package utils

import (
	"context"

	"github.com/mmdatafocus/pipeworks_backend/appctx"
)

func GetTokenIdFromContext(ctx context.Context) (string, bool) {
	return appctx.Get[string](ctx, appctx.ContextKeyTokenId)
}

func GetUsernameFromContext(ctx context.Context) (string, bool) {
	return appctx.Get[string](ctx, appctx.ContextKeyUsername)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.Get[int](ctx, appctx.ContextKeyUserId)
}

func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	return appctx.Get[string](ctx, appctx.ContextKeyUserRole)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.Get[string](ctx, appctx.ContextKeyCorrelationId)
}

func SetTokenIdInContext(ctx context.Context, tokenId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyTokenId, tokenId)
}

func SetUsernameInContext(ctx context.Context, username string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyUsername, username)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyUserId, userId)
}

func SetUserRoleInContext(ctx context.Context, role string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyUserRole, role)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyCorrelationId, correlationId)
}
