package httpx

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/adrisa007/guardiao/pkg/slogx"
)

// APIError is an error that knows how it should be rendered over HTTP.
type APIError struct {
	Status           int
	Message          string
	Code             string // rendered as "error"
	ValidationErrors []string
	RequiredRoles    []string
	UserRole         string
	Cause            error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Cause)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Cause }

// NewError builds an APIError whose "error" field is the status text.
func NewError(status int, message string) *APIError {
	return &APIError{Status: status, Message: message, Code: http.StatusText(status)}
}

func BadRequest(message string, validation ...string) *APIError {
	e := NewError(http.StatusBadRequest, message)
	e.ValidationErrors = validation
	return e
}

func Unauthorized(message string) *APIError { return NewError(http.StatusUnauthorized, message) }
func Forbidden(message string) *APIError    { return NewError(http.StatusForbidden, message) }
func NotFound(message string) *APIError     { return NewError(http.StatusNotFound, message) }
func Conflict(message string) *APIError     { return NewError(http.StatusConflict, message) }

// Internal wraps an unexpected failure as a 500.
func Internal(cause error) *APIError {
	e := NewError(http.StatusInternalServerError, "Erro interno do servidor")
	e.Cause = cause
	return e
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Success          bool     `json:"success"`
	StatusCode       int      `json:"statusCode"`
	Timestamp        string   `json:"timestamp"`
	Path             string   `json:"path"`
	Method           string   `json:"method"`
	Message          string   `json:"message"`
	Error            string   `json:"error,omitempty"`
	ValidationErrors []string `json:"validationErrors,omitempty"`
	RequiredRoles    []string `json:"requiredRoles,omitempty"`
	UserRole         string   `json:"userRole,omitempty"`
}

// WriteError logs e (warn for 4xx, error with a stack for 5xx) and writes
// the error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, e *APIError) {
	log := slogx.FromContext(r.Context())
	if e.Status >= http.StatusInternalServerError {
		log.Error("request failed",
			"status", e.Status,
			"method", r.Method,
			"path", r.URL.Path,
			"err", e.Cause,
			"stack", string(debug.Stack()),
		)
	} else {
		log.Warn("request rejected",
			"status", e.Status,
			"method", r.Method,
			"path", r.URL.Path,
			"message", e.Message,
		)
	}

	WriteJSON(w, e.Status, ErrorBody{
		Success:          false,
		StatusCode:       e.Status,
		Timestamp:        time.Now().UTC().Format(time.RFC3339Nano),
		Path:             r.URL.RequestURI(),
		Method:           r.Method,
		Message:          e.Message,
		Error:            e.Code,
		ValidationErrors: e.ValidationErrors,
		RequiredRoles:    e.RequiredRoles,
		UserRole:         e.UserRole,
	})
}
