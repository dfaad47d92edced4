// Package metrics exposes Prometheus counters for the HTTP surface and the
// authentication, consent and DSAR flows.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login results.
const (
	LoginSuccess     = "success"
	LoginFailed      = "failed"
	LoginMFARequired = "mfa_required"
	LoginDenied      = "denied" // blocked, inactive or term gate
)

// MetricsCollector is what services report to.
type MetricsCollector interface {
	RecordLogin(result string)
	RecordMFAVerification(ok bool)
	RecordRefreshRotation(ok bool)
	RecordConsentOperation(op string)
	RecordDSARCreated(kind string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordLogin(string)            {}
func (Nop) RecordMFAVerification(bool)    {}
func (Nop) RecordRefreshRotation(bool)    {}
func (Nop) RecordConsentOperation(string) {}
func (Nop) RecordDSARCreated(string)      {}

type Collector struct {
	logins       *prometheus.CounterVec
	mfa          *prometheus.CounterVec
	refresh      *prometheus.CounterVec
	consents     *prometheus.CounterVec
	dsars        *prometheus.CounterVec
	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardiao_login_attempts_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		mfa: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardiao_mfa_verifications_total",
			Help: "MFA code verifications by outcome.",
		}, []string{"outcome"}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardiao_refresh_rotations_total",
			Help: "Refresh token rotations by outcome.",
		}, []string{"outcome"}),
		consents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardiao_consent_operations_total",
			Help: "Consent record operations.",
		}, []string{"op"}),
		dsars: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardiao_dsar_created_total",
			Help: "DSAR tickets filed by right.",
		}, []string{"tipo"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "guardiao_http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardiao_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guardiao_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.logins,
		c.mfa,
		c.refresh,
		c.consents,
		c.dsars,
		c.httpInFlight,
		c.httpRequests,
		c.httpDuration,
	)
	return c
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "rejected"
}

func (c *Collector) RecordLogin(result string) { c.logins.WithLabelValues(result).Inc() }

func (c *Collector) RecordMFAVerification(ok bool) { c.mfa.WithLabelValues(outcome(ok)).Inc() }

func (c *Collector) RecordRefreshRotation(ok bool) { c.refresh.WithLabelValues(outcome(ok)).Inc() }

func (c *Collector) RecordConsentOperation(op string) { c.consents.WithLabelValues(op).Inc() }

func (c *Collector) RecordDSARCreated(kind string) { c.dsars.WithLabelValues(kind).Inc() }

// RegisterAuditQueue exposes the audit recorder's drop and failure counts.
func RegisterAuditQueue(reg prometheus.Registerer, dropped, failed func() int64, queued func() int) {
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "guardiao_audit_dropped_total",
			Help: "Audit events dropped because the queue was full.",
		}, func() float64 { return float64(dropped()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "guardiao_audit_failed_total",
			Help: "Audit events that could not be written.",
		}, func() float64 { return float64(failed()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "guardiao_audit_queue_length",
			Help: "Audit events waiting to be written.",
		}, func() float64 { return float64(queued()) }),
	)
}

// Instrument records in-flight count, status and latency per route pattern.
func (c *Collector) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.httpInFlight.Inc()
		defer c.httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		c.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.code)).Inc()
	})
}

// Handler serves the gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
