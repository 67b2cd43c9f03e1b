// Package api exposes the note store over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/introspection"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/pinboard/pkg/core"
)

// maxRequestBodySize limits request bodies.
const maxRequestBodySize = 1 << 20 // 1 MB

// SessionFunc resolves the signed-in user of a request.
// It returns ok=false when the request carries no valid session.
type SessionFunc func(r *http.Request) (user any, ok bool)

// Server serves the Notes API, health, metrics and the minimal pages.
type Server struct {
	store      core.Store
	logger     *slog.Logger
	registry   *prometheus.Registry
	metrics    *Metrics
	components map[string]introspection.Introspectable
	middleware []func(http.Handler) http.Handler
	routes     []func(*http.ServeMux)
	session    SessionFunc
	started    time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRegistry serves and registers metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// WithMetrics uses m instead of creating collectors. m must be registered on the server registry.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithComponent exposes c under name on /debug/state.
func WithComponent(name string, c introspection.Introspectable) Option {
	return func(s *Server) {
		if c != nil {
			s.components[name] = c
		}
	}
}

// WithMiddleware wraps the router. Middleware runs inside request metrics.
func WithMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(s *Server) { s.middleware = append(s.middleware, mw) }
}

// WithRoutes lets collaborators (auth) register extra handlers.
func WithRoutes(register func(*http.ServeMux)) Option {
	return func(s *Server) { s.routes = append(s.routes, register) }
}

// WithSession enables GET /api/session.
func WithSession(fn SessionFunc) Option {
	return func(s *Server) { s.session = fn }
}

// NewServer creates a Server over store.
func NewServer(store core.Store, opts ...Option) *Server {
	s := &Server{
		store:      store,
		logger:     slog.Default(),
		components: make(map[string]introspection.Introspectable),
		started:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(s.registry)
	}
	return s
}

// Metrics returns the collectors used by the server.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler builds the routed handler.
//
//	GET    /api/notes
//	POST   /api/notes
//	GET    /api/notes/{id}
//	PATCH  /api/notes/{id}
//	DELETE /api/notes/{id}
//	GET    /api/session
//	GET    /healthz
//	GET    /metrics
//	GET    /debug/state
//	GET    /            (home)
//	GET    /notes       (protected page)
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/notes", s.handleList)
	mux.HandleFunc("POST /api/notes", s.handleCreate)
	mux.HandleFunc("GET /api/notes/{id}", s.handleGet)
	mux.HandleFunc("PATCH /api/notes/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/notes/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/session", s.handleSession)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	mux.HandleFunc("GET /debug/state", s.handleState)

	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /notes", s.handleNotesPage)

	for _, register := range s.routes {
		register(mux)
	}

	h := CapturePattern(mux)
	for i := len(s.middleware) - 1; i >= 0; i-- {
		h = s.middleware[i](h)
	}
	return s.metrics.Middleware(h)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state := make(map[string]any, len(s.components))
	for name, c := range s.components {
		state[name] = c.State()
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		writeError(w, http.StatusNotFound, "Sessions are not enabled")
		return
	}
	user, ok := s.session(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not signed in")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
