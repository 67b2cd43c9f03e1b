package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPublic lists the paths served without a session.
// Patterns are matched against the path without its leading slash; the home page is always public.
var DefaultPublic = []string{
	"api/**",
	"auth/**",
	"**/*auth*",
	"**/*auth*/**",
	"static/**",
	"metrics",
	"healthz",
	"favicon.ico",
}

// Gate redirects requests without a valid session away from protected pages.
type Gate struct {
	sessions *Sessions
	public   []string
	redirect string
	logger   *slog.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithPublic replaces DefaultPublic.
func WithPublic(patterns ...string) GateOption {
	return func(g *Gate) { g.public = patterns }
}

// WithRedirect changes where unauthenticated requests are sent. Default "/".
func WithRedirect(path string) GateOption {
	return func(g *Gate) { g.redirect = path }
}

// WithGateLogger sets the logger.
func WithGateLogger(l *slog.Logger) GateOption {
	return func(g *Gate) { g.logger = l }
}

// NewGate creates a Gate checking sessions issued by s.
func NewGate(s *Sessions, opts ...GateOption) (*Gate, error) {
	g := &Gate{
		sessions: s,
		public:   DefaultPublic,
		redirect: "/",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	for _, p := range g.public {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid public pattern %q", p)
		}
	}
	return g, nil
}

// Public reports whether path is served without a session.
func (g *Gate) Public(path string) bool {
	name := strings.TrimPrefix(path, "/")
	if name == "" {
		return true
	}
	for _, p := range g.public {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Middleware wraps next with the session check.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.Public(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := g.sessions.FromRequest(r)
		if err != nil {
			g.logger.Debug("gate: redirecting", "path", r.URL.Path, "reason", err)
			http.Redirect(w, r, g.redirect, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}
