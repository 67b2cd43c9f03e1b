package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/pinboard/pkg/core"
)

// Metrics holds the Prometheus collectors of the HTTP surface.
type Metrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	mutations *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pinboard",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pinboard",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pinboard",
			Name:      "note_events_total",
			Help:      "Note change events by type.",
		}, []string{"type"}),
	}
	reg.MustRegister(m.requests, m.latency, m.mutations)
	return m
}

// Publish implements core.Publisher by counting events.
func (m *Metrics) Publish(_ context.Context, e core.Event) error {
	m.mutations.WithLabelValues(string(e.Type)).Inc()
	return nil
}

type patternKey struct{}

// Middleware records every request under the mux pattern that served it.
// The pattern is reported by CapturePattern, which must wrap the mux itself.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		route := new(string)

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), patternKey{}, route)))

		if *route == "" {
			*route = "unmatched"
		}
		m.requests.WithLabelValues(*route, strconv.Itoa(rec.status)).Inc()
		m.latency.WithLabelValues(*route).Observe(time.Since(start).Seconds())
	})
}

// CapturePattern reports the pattern mux matched back to Middleware.
// Middleware in between may replace the request, so r.Pattern is read here.
func CapturePattern(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		if route, ok := r.Context().Value(patternKey{}).(*string); ok {
			*route = r.Pattern
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

var _ core.Publisher = (*Metrics)(nil)
