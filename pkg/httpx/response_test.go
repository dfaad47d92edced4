package httpx_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/adrisa007/guardiao/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("a"), nil, mw("b"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestNewPageMeta(t *testing.T) {
	tests := []struct {
		total, page, limit int
		want httpx.PageMeta
	}{
		{0, 1, 20, httpx.PageMeta{Total: 0, Page: 1, Limit: 20, TotalPages: 0}},
		{45, 1, 20, httpx.PageMeta{Total: 45, Page: 1, Limit: 20, TotalPages: 3, HasNext: true}},
		{45, 3, 20, httpx.PageMeta{Total: 45, Page: 3, Limit: 20, TotalPages: 3, HasPrev: true}},
		{40, 2, 20, httpx.PageMeta{Total: 40, Page: 2, Limit: 20, TotalPages: 2, HasPrev: true}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, httpx.NewPageMeta(tt.total, tt.page, tt.limit))
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Email string `json:"email"`
	}

	tests := []struct {
		name    string
		payload string
		status  int
	}{
		{"valid", `{"email":"a@b.com"}`, 0},
		{"empty", ``, http.StatusBadRequest},
		{"unknown field", `{"email":"a@b.com","admin":true}`, http.StatusBadRequest},
		{"syntax", `{"email":`, http.StatusBadRequest},
		{"trailing object", `{"email":"a"}{"email":"b"}`, http.StatusBadRequest},
		{"too large", `{"email":"` + strings.Repeat("a", httpx.MaxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.payload))
			var dst body
			err := httpx.DecodeJSON(httptest.NewRecorder(), req, &dst)
			if tt.status == 0 {
				require.NoError(t, err)
				require.Equal(t, "a@b.com", dst.Email)
				return
			}
			var apiErr *httpx.APIError
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, tt.status, apiErr.Status)
		})
	}

	t.Run("unknown field is reported", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"admin":true}`))
		err := httpx.DecodeJSON(httptest.NewRecorder(), req, &body{})
		var apiErr *httpx.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, []string{"property admin should not exist"}, apiErr.ValidationErrors)
	})
}

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/consentimentos/abc?x=1", nil)

	httpx.WriteError(rec, req, httpx.BadRequest("Dados inválidos", "motivo must be longer than or equal to 5 characters"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body httpx.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Equal(t, 400, body.StatusCode)
	require.Equal(t, "/consentimentos/abc?x=1", body.Path)
	require.Equal(t, http.MethodPatch, body.Method)
	require.Equal(t, "Dados inválidos", body.Message)
	require.Equal(t, "Bad Request", body.Error)
	require.Len(t, body.ValidationErrors, 1)
	require.NotEmpty(t, body.Timestamp)
}

func TestWriteOK(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.WriteOK(rec, http.StatusCreated, "Criado", map[string]string{"id": "1"})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.JSONEq(t, `{"success":true,"message":"Criado","data":{"id":"1"}}`, rec.Body.String())
}

func TestRecovery(t *testing.T) {
	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), httpx.Recovery())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "Erro interno do servidor")
	require.NotContains(t, rec.Body.String(), "boom")
}

func TestSecurityHeaders(t *testing.T) {
	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), httpx.SecurityHeaders())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}
