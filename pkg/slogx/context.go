package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

type reqInfoKey struct{}

// reqInfo is shared between the request middleware and the handlers below
// it so the final access log line can carry fields learned downstream.
type reqInfo struct {
	userID string
}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

func WithRequestID(ctx context.Context, reqID string) context.Context {
	l := FromContext(ctx)
	return WithContext(ctx, l.With("req_id", reqID))
}

// WithUser tags the request logger with the authenticated user id.
func WithUser(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	if info, ok := ctx.Value(reqInfoKey{}).(*reqInfo); ok {
		info.userID = userID
	}
	return WithContext(ctx, FromContext(ctx).With("user_id", userID))
}
