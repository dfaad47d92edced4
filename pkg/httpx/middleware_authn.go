package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/adrisa007/guardiao/pkg/jwtx"
	"github.com/adrisa007/guardiao/pkg/slogx"
)

// CallerResolver turns verified claims into the caller for this request,
// typically by reloading the user so that disabled accounts and role
// changes take effect before the token expires.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, claims jwtx.Claims) (Caller, error)
}

// ErrorWriter renders an error produced by a middleware.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Authn verifies bearer tokens.
type Authn struct {
	Verifier jwtx.Verifier
	Resolver CallerResolver // optional
	OnError  ErrorWriter    // optional
}

// Required rejects requests without a valid bearer token.
func (a Authn) Required() Middleware {
	return a.middleware(false)
}

// Optional authenticates the request when a bearer token is present and
// lets anonymous requests through. A token that is present but invalid is
// still rejected.
func (a Authn) Optional() Middleware {
	return a.middleware(true)
}

// AuthnMiddleware is shorthand for Authn{Verifier: v}.Required().
func AuthnMiddleware(v jwtx.Verifier) Middleware {
	return Authn{Verifier: v}.Required()
}

func (a Authn) middleware(optional bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, present := bearerToken(r)
			if !present {
				if optional {
					next.ServeHTTP(w, r)
					return
				}
				a.fail(w, r, Unauthorized("Token de acesso ausente"))
				return
			}

			claims, err := a.Verifier.Verify(raw)
			if err != nil {
				log.Warn("jwt verify failed", "err", err)
				msg := "Token inválido"
				if errors.Is(err, jwtx.ErrExpired) {
					msg = "Token expirado"
				}
				a.fail(w, r, Unauthorized(msg))
				return
			}

			caller := CallerFromClaims(claims)
			if a.Resolver != nil {
				caller, err = a.Resolver.ResolveCaller(ctx, claims)
				if err != nil {
					a.fail(w, r, err)
					return
				}
			}

			// Inject into context for downstream handlers.
			ctx = context.WithValue(ctx, CtxKeyClaims, claims)
			ctx = WithCaller(ctx, caller)
			ctx = slogx.WithUser(ctx, caller.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a Authn) fail(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	if a.OnError != nil {
		a.OnError(w, r, err)
		return
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		apiErr = Unauthorized("Token inválido")
	}
	WriteError(w, r, apiErr)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(token), true
}
