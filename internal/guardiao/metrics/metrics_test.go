package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCollectorCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin(LoginSuccess)
	c.RecordLogin(LoginSuccess)
	c.RecordLogin(LoginFailed)
	c.RecordRefreshRotation(false)
	c.RecordDSARCreated("ACESSO_AOS_DADOS")

	out := scrape(t, reg)
	require.Contains(t, out, `guardiao_login_attempts_total{result="success"} 2`)
	require.Contains(t, out, `guardiao_login_attempts_total{result="failed"} 1`)
	require.Contains(t, out, `guardiao_refresh_rotations_total{outcome="rejected"} 1`)
	require.Contains(t, out, `guardiao_dsar_created_total{tipo="ACESSO_AOS_DADOS"} 1`)
}

func TestInstrumentUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	mux := http.NewServeMux()
	mux.Handle("GET /dsar/{id}", c.Instrument(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})))

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dsar/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	require.Contains(t, scrape(t, reg),
		`guardiao_http_requests_total{method="GET",route="GET /dsar/{id}",status="404"} 2`)
}

func TestAuditQueueMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)
	RegisterAuditQueue(reg, func() int64 { return 3 }, func() int64 { return 0 }, func() int { return 1 })

	out := scrape(t, reg)
	require.Contains(t, out, "guardiao_audit_dropped_total 3")
	require.Contains(t, out, "guardiao_audit_queue_length 1")
}

func TestNopSatisfiesCollector(t *testing.T) {
	var c MetricsCollector = Nop{}
	c.RecordLogin(LoginSuccess)
	c = NewCollector(prometheus.NewRegistry())
	c.RecordConsentOperation("create")
}
