package http

import (
	"errors"
	"net/http"

	"github.com/adrisa007/guardiao/internal/guardiao/authz"
	"github.com/adrisa007/guardiao/internal/guardiao/service"
	"github.com/adrisa007/guardiao/pkg/httpx"
	"github.com/adrisa007/guardiao/pkg/validx"
)

// toAPIError maps a handler or service failure onto the error envelope.
// Anything unrecognised is a 500 whose cause is only logged.
func toAPIError(err error) *httpx.APIError {
	var (
		apiErr   *httpx.APIError
		verrs    validx.Errors
		roleErr  *authz.RoleError
		denied   *authz.DeniedError
		svcErr   *service.Error
		required []string
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &verrs):
		return httpx.BadRequest("Dados inválidos", verrs...)
	case errors.As(err, &roleErr):
		for _, r := range roleErr.Required {
			required = append(required, string(r))
		}
		return httpx.InsufficientRole(required, string(roleErr.Actual))
	case errors.As(err, &denied):
		return httpx.Forbidden(denied.Message)
	case errors.As(err, &svcErr):
		return httpx.NewError(statusFor(svcErr.Kind), svcErr.Message)
	}
	return httpx.Internal(err)
}

func statusFor(kind error) int {
	switch {
	case errors.Is(kind, service.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(kind, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(kind, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(kind, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, service.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	httpx.WriteError(w, r, toAPIError(err))
}
