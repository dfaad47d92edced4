package slogx_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/adrisa007/guardiao/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestNewTagsService(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	log := slogx.New(slogx.Config{Service: "guardiao", Version: "test", Env: "test", Level: "debug", Output: &buf})
	log.Debug("hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "guardiao", rec["service"])
	require.Equal(t, "hello", rec["msg"])
}

func TestNewRedactsPersonalData(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	log := slogx.New(slogx.Config{Service: "guardiao", Output: &buf})
	log.Info("login", "email", "a@example.com", "CPF", "12345678900", "senha", "Senha@2025!")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "a@example.com", rec["email"])
	require.Equal(t, slogx.Redacted, rec["CPF"])
	require.Equal(t, slogx.Redacted, rec["senha"])
	require.NotContains(t, buf.String(), "12345678900")
}

func TestHTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	h := slogx.HTTPMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := slogx.WithUser(r.Context(), "user-1")
		slogx.FromContext(ctx).Info("inside")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("abc"))
	}))

	t.Run("generates and echoes request id", func(t *testing.T) {
		buf.Reset()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

		require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)

		var inside, access map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &inside))
		require.NoError(t, json.Unmarshal([]byte(lines[1]), &access))

		require.Equal(t, "user-1", inside["user_id"])
		require.Equal(t, "http_request", access["msg"])
		require.EqualValues(t, http.StatusCreated, access["status"])
		require.EqualValues(t, 3, access["bytes"])
		require.Equal(t, "user-1", access["user_id"])
		require.Equal(t, rec.Header().Get("X-Request-ID"), access["req_id"])
	})

	t.Run("keeps caller request id", func(t *testing.T) {
		buf.Reset()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	})

	t.Run("replaces oversized request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("a", 500))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Len(t, rec.Header().Get("X-Request-ID"), 26)
	})
}

func TestFromContextDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Equal(t, slog.Default(), slogx.FromContext(req.Context()))
}
