package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/odyssey-access/internal/rbac"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	provisioned     *prometheus.CounterVec
	commits         *prometheus.CounterVec
}

// NewMetrics initialises the registry with HTTP and permission metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	provisioned := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_rbac_catalog_provision_total",
		Help: "Catalog permissions created or failed during provisioning.",
	}, []string{"result"})
	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_rbac_grant_commits_total",
		Help: "Grant set commits by principal kind and status.",
	}, []string{"kind", "status"})
	registry.MustRegister(requests, duration, provisioned, commits)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		provisioned:     provisioned,
		commits:         commits,
	}
}

// Handler returns the /metrics handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// PermissionCreated implements rbac.ProvisionObserver.
func (m *Metrics) PermissionCreated(string) {
	if m == nil {
		return
	}
	m.provisioned.WithLabelValues("created").Inc()
}

// PermissionFailed implements rbac.ProvisionObserver.
func (m *Metrics) PermissionFailed(string) {
	if m == nil {
		return
	}
	m.provisioned.WithLabelValues("failed").Inc()
}

// Committed implements rbac.CommitObserver.
func (m *Metrics) Committed(kind rbac.PrincipalKind, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.commits.WithLabelValues(string(kind), status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

var (
	_ rbac.ProvisionObserver = (*Metrics)(nil)
	_ rbac.CommitObserver    = (*Metrics)(nil)
)
