package httpx

import (
	"net/http"
	"slices"
)

// RequireRoles lets the request through only when the caller's role is one
// of allowed. Must run after authentication.
func RequireRoles(allowed ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFromContext(r.Context())
			if !ok {
				WriteError(w, r, Unauthorized("Token de acesso ausente"))
				return
			}
			if !slices.Contains(allowed, caller.Role) {
				WriteError(w, r, InsufficientRole(allowed, caller.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// InsufficientRole is the 403 returned when a role check fails.
func InsufficientRole(required []string, actual string) *APIError {
	return &APIError{
		Status:        http.StatusForbidden,
		Message:       "Acesso negado: você não possui permissão para esta ação",
		Code:          "INSUFFICIENT_ROLE",
		RequiredRoles: required,
		UserRole:      actual,
	}
}
