package httpx

import (
	"context"

	"github.com/adrisa007/guardiao/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyUserID ctxKey = "user_id"
	CtxKeyCaller ctxKey = "caller"
	CtxKeyClaims ctxKey = "claims"
)

// Caller is the authenticated principal attached to a request.
type Caller struct {
	UserID       string
	Email        string
	Name         string
	Role         string
	ControllerID string
}

// CallerFromClaims builds a Caller straight from verified token claims.
func CallerFromClaims(c jwtx.Claims) Caller {
	return Caller{
		UserID:       c.Subject,
		Email:        c.Email,
		Role:         c.Role,
		ControllerID: c.ControllerID,
	}
}

// WithCaller stores the caller (and its user id) in ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.UserID)
	return context.WithValue(ctx, CtxKeyCaller, c)
}

// CallerFromContext returns the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(CtxKeyCaller).(Caller)
	return c, ok
}

// ClaimsFromContext returns the verified access-token claims, if any.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(jwtx.Claims)
	return c, ok
}
