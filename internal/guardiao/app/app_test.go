package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := defaultConfig()
	cfg.LogLevel = "error"
	cfg.DatabaseFile = filepath.Join(dir, "guardiao.db")
	cfg.SigningKeyFile = filepath.Join(dir, "signing_key.pem")
	cfg.AttachmentsDir = filepath.Join(dir, "uploads")
	cfg.RefreshStore = "memory"
	return cfg
}

func TestApplicationLifecycle(t *testing.T) {
	cfg := testConfig(t)

	app, err := New(cfg)
	require.NoError(t, err)
	app.startWorkers()

	_, err = os.Stat(cfg.SigningKeyFile)
	require.NoError(t, err, "signing key is created on first start")

	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "go_goroutines")

	require.NoError(t, app.Shutdown())
}

func TestApplicationReusesSigningKey(t *testing.T) {
	cfg := testConfig(t)

	first, err := New(cfg)
	require.NoError(t, err)
	key, err := os.ReadFile(cfg.SigningKeyFile)
	require.NoError(t, err)
	first.startWorkers()
	require.NoError(t, first.Shutdown())

	second, err := New(cfg)
	require.NoError(t, err)
	again, err := os.ReadFile(cfg.SigningKeyFile)
	require.NoError(t, err)
	require.Equal(t, key, again)
	second.startWorkers()
	require.NoError(t, second.Shutdown())
}

func TestApplicationWithoutMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.MetricsEnabled = false
	cfg.Algorithm = "HS256"
	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"

	app, err := New(cfg)
	require.NoError(t, err)
	app.startWorkers()
	defer func() { require.NoError(t, app.Shutdown()) }()

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.RefreshStore = "redis"
	_, err := New(cfg)
	require.ErrorContains(t, err, "REDIS_ADDR")
}
