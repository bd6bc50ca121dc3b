// Package metrics exposes Prometheus instrumentation for the engine and
// the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/urbangroup/botflow/pkg/script"
)

// Metrics holds the registered collectors.
type Metrics struct {
	registry *prometheus.Registry

	events        *prometheus.CounterVec
	sessionsDone  *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botflow_events_total",
				Help: "Total number of conversation events by type",
			},
			[]string{"type"},
		),
		sessionsDone: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botflow_sessions_finished_total",
				Help: "Total number of sessions reaching a terminal state",
			},
			[]string{"status"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botflow_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
		httpDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "botflow_http_request_duration_seconds",
				Help: "Duration of HTTP requests",
			},
			[]string{"method"},
		),
	}
	m.registry.MustRegister(m.events, m.sessionsDone, m.httpRequests, m.httpDurations)
	return m
}

// EventHook returns a hook for engine.WithEventHook that counts every
// emitted event.
func (m *Metrics) EventHook() func(script.Event) {
	return func(e script.Event) {
		m.events.WithLabelValues(string(e.Type)).Inc()
		switch e.Type {
		case script.EventSessionDone:
			m.sessionsDone.WithLabelValues(string(script.StatusDone)).Inc()
		case script.EventSessionFailed:
			m.sessionsDone.WithLabelValues(string(script.StatusFailed)).Inc()
		}
	}
}

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments HTTP handlers with request counts and durations.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.httpRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		m.httpDurations.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
